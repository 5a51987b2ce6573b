// Package schemas embeds and compiles the JSON Schemas for persisted
// documents: the metadata cache file and the check report artifact.
package schemas

import (
	"bytes"
	"embed"
	"fmt"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed *.schema.json
var schemaFS embed.FS

const (
	Cache  = "cache"
	Report = "report"
)

var (
	compileOnce sync.Once
	compiler    *jsonschema.Compiler
	compileErr  error
)

func getCompiler() (*jsonschema.Compiler, error) {
	compileOnce.Do(func() {
		c := jsonschema.NewCompiler()
		for _, name := range []string{Cache, Report} {
			data, err := schemaFS.ReadFile(schemaPath(name))
			if err != nil {
				compileErr = fmt.Errorf("read schema %s: %w", name, err)
				return
			}
			doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
			if err != nil {
				compileErr = fmt.Errorf("decode schema %s: %w", name, err)
				return
			}
			if err := c.AddResource(schemaURL(name), doc); err != nil {
				compileErr = fmt.Errorf("register schema %s: %w", name, err)
				return
			}
		}
		compiler = c
	})
	return compiler, compileErr
}

func schemaPath(name string) string {
	return fmt.Sprintf("%s.schema.json", name)
}

func schemaURL(name string) string {
	return fmt.Sprintf("mem://schemas/%s.schema.json", name)
}

// Compile returns the named schema, compiling the embedded set on first use.
func Compile(name string) (*jsonschema.Schema, error) {
	c, err := getCompiler()
	if err != nil {
		return nil, err
	}
	s, err := c.Compile(schemaURL(name))
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", name, err)
	}
	return s, nil
}
