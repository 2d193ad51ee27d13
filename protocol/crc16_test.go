package protocol

import "testing"

func TestCRC16(t *testing.T) {
	testCases := []struct {
		data     []byte
		expected uint16
	}{
		{[]byte("123456789"), 0x6F91},
		{[]byte{}, 0xFFFF},
	}

	for i, tc := range testCases {
		if got := CRC16(tc.data); got != tc.expected {
			t.Errorf("Test case %d: expected 0x%04X, got 0x%04X", i, tc.expected, got)
		}
	}
}

func TestCRC16Chunked(t *testing.T) {
	image := make([]byte, 301)
	for i := range image {
		image[i] = byte(i * 7)
	}

	crc := uint16(0xFFFF)
	for off := 0; off < len(image); off += BufferSize {
		end := off + BufferSize
		if end > len(image) {
			end = len(image)
		}
		crc = CRC16Update(crc, image[off:end])
	}

	if whole := CRC16(image); crc != whole {
		t.Errorf("Expected chunked CRC 0x%04X, got 0x%04X", whole, crc)
	}
}

func TestCRC16DetectsSingleBitFlip(t *testing.T) {
	image := []byte{0xAD, 0x00, 0x00, 0x00, 0x12, 0x34}
	want := CRC16(image)
	for i := range image {
		for bit := uint(0); bit < 8; bit++ {
			image[i] ^= 1 << bit
			if CRC16(image) == want {
				t.Errorf("Expected flip of byte %d bit %d to change the CRC", i, bit)
			}
			image[i] ^= 1 << bit
		}
	}
}
