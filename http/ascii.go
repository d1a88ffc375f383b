package http

// toUpper folds ASCII letters only. It returns s itself when nothing changes.
func toUpper(s string) string {
	i := 0
	for ; i < len(s); i++ {
		if s[i] >= 'a' && s[i] <= 'z' {
			break
		}
	}
	if i == len(s) {
		return s
	}

	b := []byte(s)
	toUpperScalar(b[i:])
	return string(b)
}

func toUpperScalar(data []byte) {
	for i := range data {
		if data[i] >= 'a' && data[i] <= 'z' {
			data[i] -= 'a' - 'A'
		}
	}
}

func toLowerScalar(data []byte) {
	for i := range data {
		if data[i] >= 'A' && data[i] <= 'Z' {
			data[i] += 'a' - 'A'
		}
	}
}

func toLower(s string) string {
	b := []byte(s)
	toLowerScalar(b)
	return string(b)
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if ca >= 'A' && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if cb >= 'A' && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
