package gff_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/m-mizutani/annodb/pkg/domain/model"
	"github.com/m-mizutani/annodb/pkg/domain/types"
	"github.com/m-mizutani/annodb/pkg/parser/gff"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
)

const sampleGFF3 = `##gff-version 3
# a comment
seq1	RefSeq	gene	1	300	.	+	.	ID=gene0;Name=thrL
seq1	RefSeq	CDS	1	150	.	+	0	ID=cds0;Parent=gene0;product=thr%20leader
seq1	RefSeq	CDS	200	300	.	+	0	ID=cds0;Parent=gene0

seq1	RefSeq	exon	500	400	.	-	.	ID=exon1
seq1	RefSeq	region	1	1000	.	.	.
##FASTA
>seq1
ACGT
`

func TestParse_GFF3(t *testing.T) {
	records, err := gff.Parse(strings.NewReader(sampleGFF3))
	gt.NoError(t, err).Required()
	gt.A(t, records).Length(5)

	gene := records[0]
	gt.Value(t, gene.SeqID).Equal("seq1")
	gt.Value(t, gene.Type).Equal("gene")
	gt.Number(t, gene.Start).Equal(0)
	gt.Number(t, gene.End).Equal(300)
	gt.Value(t, gene.Attributes["Name"]).Equal("thrL")

	cds := records[1]
	gt.Value(t, cds.Phase).Equal("0")
	gt.Value(t, cds.Attributes["product"]).Equal("thr leader")

	exon := records[3]
	gt.Number(t, exon.Start).Equal(399)
	gt.Number(t, exon.End).Equal(500)
	gt.Value(t, exon.Strand).Equal("-")

	gt.Number(t, len(records[4].Attributes)).Equal(0)
}

func TestParse_GFF2(t *testing.T) {
	input := "chr1\tensembl\texon\t11\t20\t.\t+\t.\tgene_id \"ENSG01\"; transcript_id \"ENST01\";\n"
	records, err := gff.Parse(strings.NewReader(input))
	gt.NoError(t, err).Required()
	gt.A(t, records).Length(1)

	attrs := records[0].Attributes
	gt.Value(t, attrs["gene_id"]).Equal("ENSG01")
	gt.Value(t, attrs["transcript_id"]).Equal("ENST01")
	gt.Value(t, attrs["ID"]).Equal("ENSG01")
	gt.Number(t, records[0].Start).Equal(10)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "too few columns", input: "seq1\tsrc\tgene\t1\t2\n"},
		{name: "non numeric start", input: "seq1\tsrc\tgene\tx\t2\t.\t+\t.\tID=a\n"},
		{name: "non numeric end", input: "seq1\tsrc\tgene\t1\ty\t.\t+\t.\tID=a\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := gff.Parse(strings.NewReader(tt.input))
			gt.Error(t, err)
			gt.True(t, goerr.HasTag(err, types.ErrTagParse))
		})
	}
}

func TestScan_StopsOnCallbackError(t *testing.T) {
	stop := errors.New("stop")
	var n int
	err := gff.Scan(strings.NewReader(sampleGFF3), func(_ *model.GFFRecord) error {
		n++
		if n == 2 {
			return stop
		}
		return nil
	})
	gt.True(t, errors.Is(err, stop))
	gt.Number(t, n).Equal(2)
}
