// statectl: офлайн-обслуживание состояния бота. Запускать при
// остановленном боте, стор не рассчитан на двух писателей.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"ladder_bot/internal/models"
	"ladder_bot/internal/modules/config"
	ledger "ladder_bot/internal/modules/ledger/service"
	store "ladder_bot/internal/modules/store/service"
	"ladder_bot/pkg/db"
)

const usage = `usage: statectl <command>

commands:
  show            print state as yaml
  check           validate config and state
  reset           drop open positions and stats
  clear-history   truncate trade ledger

env:
  LADDER_CONFIG   config path (default configs/values_local.yaml)
`

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) != 1 {
		fmt.Fprint(out, usage)
		return errors.New("expected exactly one command")
	}

	v := viper.New()
	v.SetEnvPrefix("LADDER")
	v.AutomaticEnv()
	v.SetDefault("config", "configs/values_local.yaml")

	cfg, err := config.Load(v.GetString("config"))
	if err != nil {
		return errors.Wrap(err, "load config")
	}
	st := store.NewStore(cfg.Store.Path, zap.NewNop(), nil)

	switch args[0] {
	case "show":
		return show(ctx, st, out)
	case "check":
		return check(ctx, cfg, st, out)
	case "reset":
		if !st.Reset(ctx) {
			return errors.Errorf("reset %s failed", st.Path())
		}
		fmt.Fprintf(out, "state %s reset\n", st.Path())
		return nil
	case "clear-history":
		return clearHistory(ctx, cfg, out)
	default:
		fmt.Fprint(out, usage)
		return errors.Errorf("unknown command %q", args[0])
	}
}

func show(ctx context.Context, st *store.Store, out io.Writer) error {
	// json-теги моделей -> map -> yaml, чтобы ключи совпадали с файлом
	raw, err := sonic.Marshal(st.Load(ctx))
	if err != nil {
		return errors.Wrap(err, "encode state")
	}
	var doc map[string]interface{}
	if err := sonic.Unmarshal(raw, &doc); err != nil {
		return errors.Wrap(err, "decode state")
	}
	bs, err := yaml.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "marshal state to yaml")
	}
	_, err = out.Write(bs)
	return err
}

func check(ctx context.Context, cfg *config.Config, st *store.Store, out io.Writer) error {
	fmt.Fprintln(out, "config ok:", cfg.Summary())

	state := st.Load(ctx)
	insts := make([]string, 0, len(state.OpenTrades))
	for inst := range state.OpenTrades {
		insts = append(insts, inst)
	}
	sort.Strings(insts)

	var bad int
	for _, inst := range insts {
		if err := checkPosition(inst, state.OpenTrades[inst]); err != nil {
			bad++
			fmt.Fprintln(out, "  BAD", err)
			continue
		}
		fmt.Fprintln(out, "  ok ", inst)
	}
	fmt.Fprintf(out, "state %s: %d open, sequence %d, cumulative pnl %.4f\n",
		st.Path(), len(state.OpenTrades), state.Sequence, state.CumulativePnl)
	if bad > 0 {
		return errors.Errorf("%d broken positions", bad)
	}
	return nil
}

func checkPosition(key string, p *models.PositionRecord) error {
	switch {
	case p == nil:
		return errors.Errorf("%s: empty record", key)
	case p.Instrument != key:
		return errors.Errorf("%s: record instrument %q", key, p.Instrument)
	case p.EntryPrice <= 0:
		return errors.Errorf("%s: entry price %v", key, p.EntryPrice)
	case p.RemainingQty <= 0 || p.RemainingQty > p.TotalQty:
		return errors.Errorf("%s: remaining %v of %v", key, p.RemainingQty, p.TotalQty)
	case len(p.Targets) == 0:
		return errors.Errorf("%s: no targets", key)
	}
	if p.Side != models.SideLong && p.Side != models.SideShort {
		return errors.Errorf("%s: side %q", key, p.Side)
	}
	return nil
}

func clearHistory(ctx context.Context, cfg *config.Config, out io.Writer) error {
	var l ledger.Ledger
	if cfg.Ledger.DSN != "" {
		pool, err := db.NewPool(ctx, db.PoolConfig{DSN: cfg.Ledger.DSN})
		if err != nil {
			return errors.Wrap(err, "connect postgres")
		}
		tx := db.NewPgTxManager(pool)
		defer tx.Close()
		l = ledger.NewPostgres(tx)
	} else {
		l = ledger.NewCSV(cfg.Ledger.CSVPath)
	}
	if err := l.Reset(ctx); err != nil {
		return errors.Wrap(err, "clear history")
	}
	fmt.Fprintln(out, "trade history cleared")
	return nil
}
