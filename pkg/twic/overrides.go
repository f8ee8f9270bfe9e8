package twic

// CountOverrides corrects game counts the index page is known to misreport.
type CountOverrides interface {
	Lookup(archive int, event string) (int, bool)
}

// OverrideTable maps archive number to event name to corrected count.
type OverrideTable map[int]map[string]int

// DefaultOverrides returns the corrections known at build time.
func DefaultOverrides() OverrideTable {
	return OverrideTable{
		1288: {
			"21st Torredembarra Open 2019": 63,
			"18th Bergamo Open 2019":       36,
		},
	}
}

func (t OverrideTable) Lookup(archive int, event string) (int, bool) {
	events, ok := t[archive]
	if !ok {
		return 0, false
	}
	n, ok := events[event]
	return n, ok
}

// Set records a correction, replacing any existing one.
func (t OverrideTable) Set(archive int, event string, count int) {
	if t[archive] == nil {
		t[archive] = make(map[string]int)
	}
	t[archive][event] = count
}

type noOverrides struct{}

func (noOverrides) Lookup(int, string) (int, bool) { return 0, false }
