package diff

// Counts tallies entries by status.
type Counts struct {
	Added    int `json:"added"`
	Removed  int `json:"removed"`
	Modified int `json:"modified"`
}

// Total returns the sum of all counts.
func (c Counts) Total() int {
	return c.Added + c.Removed + c.Modified
}

// Add returns the element-wise sum of c and other.
func (c Counts) Add(other Counts) Counts {
	return Counts{
		Added:    c.Added + other.Added,
		Removed:  c.Removed + other.Removed,
		Modified: c.Modified + other.Modified,
	}
}

func (c *Counts) count(status Status) {
	switch status {
	case StatusAdded:
		c.Added++
	case StatusRemoved:
		c.Removed++
	case StatusModified:
		c.Modified++
	}
}

// Statistics summarises the package diffs of a record. Sections are counted
// only inside modified packages and options only inside modified sections.
type Statistics struct {
	Packages     Counts `json:"package_stats"`
	Sections     Counts `json:"section_stats"`
	Options      Counts `json:"option_stats"`
	TotalChanges int    `json:"total_changes"`
}

// Add returns the sum of two Statistics.
func (s Statistics) Add(other Statistics) Statistics {
	return Statistics{
		Packages:     s.Packages.Add(other.Packages),
		Sections:     s.Sections.Add(other.Sections),
		Options:      s.Options.Add(other.Options),
		TotalChanges: s.TotalChanges + other.TotalChanges,
	}
}

// Stats walks packages and counts their entries.
func Stats(packages map[string]PackageDiff) Statistics {
	var s Statistics
	for _, pd := range packages {
		if !pd.Changed() {
			continue
		}
		s.Packages.count(pd.Status)
		if pd.Status != StatusModified {
			continue
		}
		for _, sd := range pd.Sections {
			s.Sections.count(sd.Status)
			if sd.Status != StatusModified {
				continue
			}
			for _, od := range sd.Options {
				s.Options.count(od.Status)
			}
		}
	}
	s.TotalChanges = s.Packages.Total() + s.Sections.Total() + s.Options.Total()
	return s
}
