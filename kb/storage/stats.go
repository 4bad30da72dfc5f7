package storage

import (
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/teranos/doxa/errors"
)

// Stats summarizes what the database holds plus where it runs.
type Stats struct {
	Entities   int   `json:"entities"`
	Relations  int   `json:"relations"`
	Assertions int   `json:"assertions"`
	Contexts   int   `json:"contexts"`
	Rules      int   `json:"rules"`
	Watchers   int   `json:"watchers"`
	SizeBytes  int64 `json:"size_bytes"`

	System SystemStats `json:"system"`
}

// SystemStats is the host memory section of a stats report.
type SystemStats struct {
	MemoryTotalBytes     uint64 `json:"memory_total_bytes"`
	MemoryAvailableBytes uint64 `json:"memory_available_bytes"`
}

// Stats counts each table and sizes the database from its page count.
// The system section is best-effort: a probe failure leaves it zero
// rather than failing the report.
func (s *SQLStore) Stats() (*Stats, error) {
	st := &Stats{}

	counts := map[string]*int{
		"entities":   &st.Entities,
		"relations":  &st.Relations,
		"assertions": &st.Assertions,
		"contexts":   &st.Contexts,
		"rules":      &st.Rules,
		"watchers":   &st.Watchers,
	}
	for _, table := range []string{"entities", "relations", "assertions", "contexts", "rules", "watchers"} {
		if err := s.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(counts[table]); err != nil {
			return nil, errors.Wrapf(err, "failed to count %s", table)
		}
	}

	var pageCount, pageSize int64
	if err := s.db.QueryRow("PRAGMA page_count").Scan(&pageCount); err != nil {
		return nil, errors.Wrap(err, "failed to read page count")
	}
	if err := s.db.QueryRow("PRAGMA page_size").Scan(&pageSize); err != nil {
		return nil, errors.Wrap(err, "failed to read page size")
	}
	st.SizeBytes = pageCount * pageSize

	if v, err := mem.VirtualMemory(); err == nil {
		st.System = SystemStats{
			MemoryTotalBytes:     v.Total,
			MemoryAvailableBytes: v.Available,
		}
	} else if s.logger != nil {
		s.logger.Debugw("Memory probe failed", "error", err)
	}

	return st, nil
}
