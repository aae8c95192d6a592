package realign

import (
	"bufio"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/exascience/pargo/pipeline"

	"github.com/vbi-informatics/gecore/vcf"
)

// LoadKnownIndels parses filename as a VCF file and returns its indel
// records — entries where some ALT allele's length differs from
// REF's — keyed by contig and sorted by position, the shape
// Config.KnownIndels expects. Non-indel records (SNVs, MNVs) are
// dropped: they never seed a realignment consensus.
func LoadKnownIndels(filename string) (map[string][]vcf.Variant, error) {
	pathname, err := filepath.Abs(filename)
	if err != nil {
		return nil, err
	}
	input, err := vcf.Open(pathname, false)
	if err != nil {
		return nil, err
	}
	defer input.Close()

	reader := (*bufio.Reader)(input.VcfReader())
	header, _, err := vcf.ParseHeader(reader)
	if err != nil {
		return nil, err
	}
	variantParser, err := header.NewVariantParser()
	if err != nil {
		return nil, err
	}
	variantParser.NSamples = 0 // genotype columns are irrelevant to a known-indel seed

	var p pipeline.Pipeline
	p.Source(pipeline.NewScanner(reader))
	p.Add(pipeline.LimitedPar(0, func(p *pipeline.Pipeline, _ pipeline.NodeKind, _ *int) (receiver pipeline.Receiver, _ pipeline.Finalizer) {
		receiver = func(_ int, data interface{}) interface{} {
			lines := data.([]string)
			byContig := make(map[string][]vcf.Variant)
			var sc vcf.StringScanner
			for _, line := range lines {
				sc.Reset(line)
				variant := sc.ParseVariant(variantParser)
				if err := sc.Err(); err != nil {
					p.SetErr(fmt.Errorf("%v, while parsing VCF variant %v", err, line))
					return byContig
				}
				if isIndel(variant) {
					byContig[variant.Chrom] = append(byContig[variant.Chrom], *variant)
				}
			}
			return byContig
		}
		return
	}))
	result := make(map[string][]vcf.Variant)
	p.Add(pipeline.Ord(pipeline.Receive(func(_ int, data interface{}) interface{} {
		for chrom, variants := range data.(map[string][]vcf.Variant) {
			result[chrom] = append(result[chrom], variants...)
		}
		return data
	})))
	p.Run()
	if err := p.Err(); err != nil {
		return nil, err
	}

	for _, variants := range result {
		sort.Slice(variants, func(i, j int) bool { return variants[i].Pos < variants[j].Pos })
	}
	return result, nil
}

func isIndel(v *vcf.Variant) bool {
	for _, alt := range v.Alt {
		if len(alt) != len(v.Ref) {
			return true
		}
	}
	return false
}
