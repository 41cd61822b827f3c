package fasta_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/m-mizutani/annodb/pkg/domain/model"
	"github.com/m-mizutani/annodb/pkg/parser/fasta"
	"github.com/m-mizutani/gt"
)

func TestParse(t *testing.T) {
	input := ">seq1 some description\nACGT\nAC GT\n\n>seq2\nTTTT\n"
	seqs, err := fasta.Parse(strings.NewReader(input))
	gt.NoError(t, err).Required()
	gt.A(t, seqs).Length(2)
	gt.Value(t, seqs[0].Name).Equal("seq1")
	gt.Value(t, seqs[0].Seq).Equal("ACGTACGT")
	gt.Value(t, seqs[1].Seq).Equal("TTTT")
}

func TestParse_Errors(t *testing.T) {
	_, err := fasta.Parse(strings.NewReader("ACGT\n>x\nAC\n"))
	gt.Error(t, err)

	_, err = fasta.Parse(strings.NewReader(">\nAC\n"))
	gt.Error(t, err)
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	err := fasta.Write(&buf, []*model.Sequence{model.NewSequence("a", "ACGTACGTAC")}, 4)
	gt.NoError(t, err)
	gt.Value(t, buf.String()).Equal(">a\nACGT\nACGT\nAC\n")

	seqs, err := fasta.Parse(&buf)
	gt.NoError(t, err)
	gt.Value(t, seqs[0].Seq).Equal("ACGTACGTAC")
}
