package repository

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var errVectorLiteral = errors.New("vector literal must be bracketed")

// pgVector is an embedding in the text form pgvector accepts and returns,
// e.g. [1,2.5,3].
type pgVector []float64

// String renders the vector with the shortest exact float representation.
func (v pgVector) String() string {
	buf := make([]byte, 0, 2+len(v)*10)
	buf = append(buf, '[')
	for i, x := range v {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = strconv.AppendFloat(buf, x, 'f', -1, 64)
	}
	return string(append(buf, ']'))
}

// parsePGVector reads a pgvector text literal. Whitespace around elements is
// ignored; empty elements are not.
func parsePGVector(literal string) (pgVector, error) {
	body, ok := strings.CutPrefix(strings.TrimSpace(literal), "[")
	if ok {
		body, ok = strings.CutSuffix(body, "]")
	}
	if !ok {
		return nil, fmt.Errorf("%w: %q", errVectorLiteral, literal)
	}
	if strings.TrimSpace(body) == "" {
		return pgVector{}, nil
	}

	out := make(pgVector, 0, strings.Count(body, ",")+1)
	for elem := range strings.SplitSeq(body, ",") {
		x, err := strconv.ParseFloat(strings.TrimSpace(elem), 64)
		if err != nil {
			return nil, fmt.Errorf("vector element %d: %w", len(out), err)
		}
		out = append(out, x)
	}
	return out, nil
}
