package domain

// SeedFragment is a batch of teams, CCIRs and raw data for import
type SeedFragment struct {
	Teams   []Team    `json:"teams" yaml:"teams"`
	CCIRs   []CCIR    `json:"ccirs,omitempty" yaml:"ccirs,omitempty"`
	RawData []RawData `json:"raw_data,omitempty" yaml:"raw_data,omitempty"`
}

// NewSeedFragment creates an empty seed fragment
func NewSeedFragment() *SeedFragment {
	return &SeedFragment{
		Teams:   make([]Team, 0),
		CCIRs:   make([]CCIR, 0),
		RawData: make([]RawData, 0),
	}
}

// AddTeam adds a team to the fragment
func (f *SeedFragment) AddTeam(team Team) {
	f.Teams = append(f.Teams, team)
}

// AddCCIR adds a CCIR to the fragment
func (f *SeedFragment) AddCCIR(ccir CCIR) {
	f.CCIRs = append(f.CCIRs, ccir)
}

// AddRawData adds a raw observation to the fragment
func (f *SeedFragment) AddRawData(raw RawData) {
	f.RawData = append(f.RawData, raw)
}
