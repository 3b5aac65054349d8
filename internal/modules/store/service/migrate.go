package service

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/bytedance/sonic"

	"ladder_bot/internal/models"
)

// flexFloat принимает и число, и строку ("101.0000") из старых файлов.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := sonic.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*f = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*f = flexFloat(v)
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

type legacyTarget struct {
	Price    flexFloat `json:"price"`
	Hit      bool      `json:"hit"`
	Level    int       `json:"level"`
	Quantity flexFloat `json:"quantity"`
}

type legacyTrade struct {
	Side              string                  `json:"side"`
	EntryPrice        flexFloat               `json:"entry_price"`
	TotalQuantity     flexFloat               `json:"total_quantity"`
	Quantity          flexFloat               `json:"quantity"`
	RemainingQuantity flexFloat               `json:"remaining_quantity"`
	TradeNum          int64                   `json:"trade_num"`
	EntryTime         string                  `json:"entry_time"`
	SL                flexFloat               `json:"sl"`
	TPTargets         map[string]legacyTarget `json:"tp_targets"`
	TrailingActive    bool                    `json:"trailing_active"`
	HighestPrice      flexFloat               `json:"highest_price"`
	LowestPrice       flexFloat               `json:"lowest_price"`
	TrailingDistance  flexFloat               `json:"trailing_distance_percent"`
	RealizedPnl       flexFloat               `json:"realized_pnl"`
}

type legacyState struct {
	OpenTrades map[string]legacyTrade `json:"open_trades"`
	Stats      models.AggregateStats  `json:"stats"`
}

type versionProbe struct {
	SchemaVersion int `json:"schema_version"`
}

// decodeState разбирает документ любой известной версии и приводит
// его к текущей схеме.
func decodeState(raw []byte) (models.State, error) {
	var probe versionProbe
	if err := sonic.Unmarshal(raw, &probe); err != nil {
		return models.State{}, fmt.Errorf("%w: %v", models.ErrInvalidState, err)
	}

	switch probe.SchemaVersion {
	case models.SchemaVersion:
		st := models.NewState()
		if err := sonic.Unmarshal(raw, &st); err != nil {
			return models.State{}, fmt.Errorf("%w: %v", models.ErrInvalidState, err)
		}
		if st.OpenTrades == nil {
			st.OpenTrades = make(map[string]*models.PositionRecord)
		}
		for inst, p := range st.OpenTrades {
			if p == nil {
				delete(st.OpenTrades, inst)
				continue
			}
			p.Instrument = inst
		}
		return st, nil
	case 0:
		var legacy legacyState
		if err := sonic.Unmarshal(raw, &legacy); err != nil {
			return models.State{}, fmt.Errorf("%w: legacy: %v", models.ErrInvalidState, err)
		}
		return upgradeV0(legacy)
	default:
		return models.State{}, fmt.Errorf("%w: unknown schema_version %d", models.ErrInvalidState, probe.SchemaVersion)
	}
}

// upgradeV0: строковые числа и tp1/tp2/tp3 -> типизированная запись.
func upgradeV0(legacy legacyState) (models.State, error) {
	st := models.NewState()
	st.Stats = legacy.Stats

	for inst, lt := range legacy.OpenTrades {
		side, ok := models.ParseSide(lt.Side)
		if !ok {
			return models.State{}, fmt.Errorf("%w: %s: side %q", models.ErrInvalidState, inst, lt.Side)
		}

		total := float64(lt.TotalQuantity)
		if total == 0 {
			total = float64(lt.Quantity)
		}
		rec := &models.PositionRecord{
			Instrument:  inst,
			Side:        side,
			EntryPrice:  float64(lt.EntryPrice),
			TotalQty:    total,
			StopPrice:   float64(lt.SL),
			InitialStop: float64(lt.SL),
			RealizedPnl: float64(lt.RealizedPnl),
			Sequence:    lt.TradeNum,
			Trailing: models.TrailingState{
				Active:      lt.TrailingActive,
				DistancePct: float64(lt.TrailingDistance),
			},
		}
		if t, err := time.Parse("2006-01-02T15:04:05.999999", lt.EntryTime); err == nil {
			rec.OpenedAt = t
		}

		for level := 1; level <= 3; level++ {
			t, ok := lt.TPTargets[fmt.Sprintf("tp%d", level)]
			if !ok {
				continue
			}
			rec.Targets = append(rec.Targets, models.TPTarget{
				Level:    level,
				Price:    float64(t.Price),
				Quantity: float64(t.Quantity),
				Hit:      t.Hit,
			})
		}

		if rec.Trailing.Active {
			rec.Trailing.Watermark = float64(lt.HighestPrice)
			if side == models.SideShort {
				rec.Trailing.Watermark = float64(lt.LowestPrice)
			}
		}

		// остаток пересчитываем из лестницы, строке в файле не доверяем
		rec.RemainingQty = rec.TotalQty - rec.HitQuantity()
		if rec.RemainingQty <= 0 || rec.EntryPrice <= 0 {
			return models.State{}, fmt.Errorf("%w: %s: inconsistent quantities", models.ErrInvalidState, inst)
		}

		if rec.Sequence > st.Sequence {
			st.Sequence = rec.Sequence
		}
		st.OpenTrades[inst] = rec
	}
	return st, nil
}
