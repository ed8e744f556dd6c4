package mirror

import (
	"encoding/json"
	"io"
	"os"

	"github.com/go-faster/errors"

	"ctsmirror/internal/domain"
)

// ReadCompanies decodes a single JSON object or a stream of them (JSONL).
func ReadCompanies(r io.Reader) ([]domain.Company, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var out []domain.Company
	for n := 1; ; n++ {
		var c domain.Company
		err := dec.Decode(&c)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &domain.ParseError{Line: n, Err: err}
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, domain.Invalid("file", "no company objects found")
	}
	return out, nil
}

func ReadCompaniesFile(path string) ([]domain.Company, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, &domain.NotFoundError{Kind: "file", ID: path}
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCompanies(f)
}
