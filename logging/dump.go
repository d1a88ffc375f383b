package logging

import "strings"

const DumpWidth = 12

const hexDigits = "0123456789abcdef"

// HexDump renders data as lines of DumpWidth bytes: hex pairs padded to full
// width, two spaces, then the printable rendering with '.' for the rest.
func HexDump(data []byte) []string {
	lines := make([]string, 0, (len(data)+DumpWidth-1)/DumpWidth)

	var sb strings.Builder
	for offset := 0; offset < len(data); offset += DumpWidth {
		chunk := data[offset:min(offset+DumpWidth, len(data))]

		sb.Reset()
		for i := range DumpWidth {
			if i > 0 {
				sb.WriteByte(' ')
			}
			if i < len(chunk) {
				sb.WriteByte(hexDigits[chunk[i]>>4])
				sb.WriteByte(hexDigits[chunk[i]&0x0f])
			} else {
				sb.WriteString("  ")
			}
		}

		sb.WriteString("  ")
		for _, c := range chunk {
			if c >= 0x20 && c < 0x7f {
				sb.WriteByte(c)
			} else {
				sb.WriteByte('.')
			}
		}

		lines = append(lines, sb.String())
	}

	return lines
}
