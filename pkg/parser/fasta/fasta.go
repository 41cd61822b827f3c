// Package fasta reads FASTA formatted sequences.
package fasta

import (
	"bufio"
	"io"
	"strings"

	"github.com/m-mizutani/annodb/pkg/domain/model"
	"github.com/m-mizutani/annodb/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

// Parse reads every record of r. The record name is the first word of the
// header line.
func Parse(r io.Reader) ([]*model.Sequence, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)

	var (
		seqs    []*model.Sequence
		name    string
		started bool
		sb      strings.Builder
		lineNo  int
	)
	flush := func() {
		if started {
			seqs = append(seqs, model.NewSequence(name, sb.String()))
		}
		sb.Reset()
	}

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}

		if header, ok := strings.CutPrefix(line, ">"); ok {
			flush()
			fields := strings.Fields(header)
			if len(fields) == 0 {
				return nil, goerr.New("empty FASTA header", goerr.V("line", lineNo), goerr.T(types.ErrTagParse))
			}
			name = fields[0]
			started = true
			continue
		}

		if !started {
			return nil, goerr.New("sequence data before header", goerr.V("line", lineNo), goerr.T(types.ErrTagParse))
		}
		for _, c := range line {
			if c != ' ' && c != '\t' {
				sb.WriteRune(c)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to read FASTA", goerr.V("line", lineNo))
	}
	flush()

	return seqs, nil
}

// Write renders sequences as FASTA with the given line width. A width of 0
// writes each sequence on one line.
func Write(w io.Writer, seqs []*model.Sequence, width int) error {
	bw := bufio.NewWriter(w)
	for _, s := range seqs {
		if _, err := bw.WriteString(">" + s.Name + "\n"); err != nil {
			return goerr.Wrap(err, "failed to write FASTA header")
		}
		seq := s.Seq
		for len(seq) > 0 {
			n := len(seq)
			if width > 0 && n > width {
				n = width
			}
			if _, err := bw.WriteString(seq[:n] + "\n"); err != nil {
				return goerr.Wrap(err, "failed to write FASTA sequence")
			}
			seq = seq[n:]
		}
	}
	if err := bw.Flush(); err != nil {
		return goerr.Wrap(err, "failed to flush FASTA")
	}
	return nil
}
