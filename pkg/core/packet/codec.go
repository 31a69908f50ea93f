package packet

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/xxh3"
)

// CompressionZstd - единственный поддерживаемый алгоритм сжатия блока данных
const CompressionZstd = "zstd"

// Compress сжимает блок данных zstd и кодирует в base64.
// level: 1 (самый быстрый) - 22 (лучшее сжатие), 3 - разумный баланс.
func Compress(input []byte, level int) ([]byte, error) {
	if len(input) == 0 {
		return nil, nil
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	defer encoder.Close()

	compressed := encoder.EncodeAll(input, nil)
	encoded := make([]byte, base64.StdEncoding.EncodedLen(len(compressed)))
	base64.StdEncoding.Encode(encoded, compressed)
	return encoded, nil
}

// Decompress декодирует блок из base64 и распаковывает zstd
func Decompress(input []byte) ([]byte, error) {
	if len(input) == 0 {
		return nil, nil
	}

	decoded := make([]byte, base64.StdEncoding.DecodedLen(len(input)))
	n, err := base64.StdEncoding.Decode(decoded, input)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	defer decoder.Close()

	out, err := decoder.DecodeAll(decoded[:n], nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress zstd: %w", err)
	}
	return out, nil
}

// Checksum вычисляет xxh3 (64-bit) в hex
func Checksum(data []byte) string {
	sum := xxh3.Hash(data)
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(sum)
		sum >>= 8
	}
	return hex.EncodeToString(b)
}

// ValidateChecksum проверяет контрольную сумму
func ValidateChecksum(data []byte, expected string) error {
	if actual := Checksum(data); !strings.EqualFold(actual, expected) {
		return fmt.Errorf("checksum mismatch: expected %s, got %s", expected, actual)
	}
	return nil
}

// compressRows сжимает экранированные строки в один блок данных
func compressRows(rows []string, level int) (Data, error) {
	block, err := Compress([]byte(strings.Join(rows, "\n")), level)
	if err != nil {
		return Data{}, err
	}
	return Data{
		Compression: CompressionZstd,
		Checksum:    Checksum(block),
		Rows:        []Row{{Value: string(block)}},
	}, nil
}

// decompressRows распаковывает блок данных обратно в строки
func decompressRows(data Data) ([]Row, error) {
	if data.Compression != CompressionZstd {
		return nil, fmt.Errorf("unsupported compression: %s", data.Compression)
	}
	if len(data.Rows) != 1 {
		return nil, fmt.Errorf("compressed data must contain exactly one block, got %d", len(data.Rows))
	}

	block := []byte(strings.TrimSpace(data.Rows[0].Value))
	if data.Checksum != "" {
		if err := ValidateChecksum(block, data.Checksum); err != nil {
			return nil, err
		}
	}

	raw, err := Decompress(block)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}

	lines := strings.Split(string(raw), "\n")
	rows := make([]Row, len(lines))
	for i, line := range lines {
		rows[i] = Row{Value: line}
	}
	return rows, nil
}
