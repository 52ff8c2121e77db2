package config

import (
	"bytes"
	"os"
	"text/template"
)

// ExpandEnv expands {{.VAR}}-style placeholders in YAML content against
// the current environment. Missing variables expand to empty string;
// validation is expected to catch required fields left empty.
//
// Malformed template syntax is passed through unchanged rather than
// erroring, so the YAML parser (or its own syntax errors) sees the
// original text.
func ExpandEnv(data []byte) []byte {
	tmpl, err := template.New("config").Option("missingkey=zero").Parse(string(data))
	if err != nil {
		return data
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, environMap()); err != nil {
		return data
	}
	return buf.Bytes()
}

// environMap exposes the process environment as a map so {{.VAR}}
// template fields resolve to os.Getenv("VAR") via text/template's
// built-in map-field lookup.
func environMap() map[string]string {
	env := map[string]string{}
	for _, kv := range os.Environ() {
		for i := range kv {
			if kv[i] == '=' {
				env[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	return env
}
