package models

// SchemaVersion: текущая версия документа состояния.
const SchemaVersion = 1

type SideStats struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Fail    int `json:"fail"`
}

// AggregateStats: счётчики закрытых сделок по сторонам.
type AggregateStats struct {
	Long  SideStats `json:"long"`
	Short SideStats `json:"short"`
}

// Record учитывает закрытую сделку: успех, если итоговый pnl > 0.
func (a *AggregateStats) Record(side Side, pnl float64) {
	s := &a.Long
	if side == SideShort {
		s = &a.Short
	}
	s.Total++
	if pnl > 0 {
		s.Success++
	} else {
		s.Fail++
	}
}

// State: весь персистентный документ.
type State struct {
	SchemaVersion int                        `json:"schema_version"`
	OpenTrades    map[string]*PositionRecord `json:"open_trades"`
	Stats         AggregateStats             `json:"stats"`
	Sequence      int64                      `json:"sequence"`
	CumulativePnl float64                    `json:"cumulative_pnl"`
}

func NewState() State {
	return State{
		SchemaVersion: SchemaVersion,
		OpenTrades:    make(map[string]*PositionRecord),
	}
}

// Clone: глубокая копия, стор отдаёт наружу только копии.
func (s State) Clone() State {
	cp := s
	cp.OpenTrades = make(map[string]*PositionRecord, len(s.OpenTrades))
	for k, v := range s.OpenTrades {
		cp.OpenTrades[k] = v.Clone()
	}
	return cp
}

// NextSequence выдаёт номер новой сделки.
func (s *State) NextSequence() int64 {
	s.Sequence++
	return s.Sequence
}
