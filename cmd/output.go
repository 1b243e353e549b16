package main

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v2"
)

const (
	formatYAML = "yaml"
	formatJSON = "json"
)

func writeOutput(w io.Writer, format string, v interface{}) error {
	var out []byte
	var err error
	switch format {
	case formatYAML, "":
		out, err = yaml.Marshal(v)
	case formatJSON:
		out, err = json.MarshalIndent(v, "", "  ")
		out = append(out, '\n')
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}
