package model

import "strings"

// Credential is an API key for the OCR provider. Its identity is its value.
type Credential string

func (c Credential) String() string { return string(c) }

// IsEmpty reports whether the credential is blank after trimming.
func (c Credential) IsEmpty() bool { return strings.TrimSpace(string(c)) == "" }

// ActiveCredentials keeps order and drops empty entries.
func ActiveCredentials(in []Credential) []Credential {
	out := make([]Credential, 0, len(in))
	for _, c := range in {
		if c.IsEmpty() {
			continue
		}
		out = append(out, Credential(strings.TrimSpace(string(c))))
	}
	return out
}
