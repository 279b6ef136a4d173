package gwas

type FilterParams struct {
	MafLowerBound float64
}

func InitFilterParams(config *Config) *FilterParams {
	return &FilterParams{
		MafLowerBound: config.MafLB,
	}
}

// KeepMaf reports whether a marker passes the minor allele frequency filter.
// Markers at exactly the bound are removed.
func (fp *FilterParams) KeepMaf(maf float64) bool {
	return maf > fp.MafLowerBound
}
