package cfg

type Cfg struct {
	// Directories
	InputDir  string
	OutputDir string

	// Processing
	TaxonomyFile string
	WorkerCount  int
	Strict       bool

	// Run artifacts
	LedgerPath  string
	MetricsFile string

	// Application metadata
	Timezone string
	Debug    bool
	Version  string
}
