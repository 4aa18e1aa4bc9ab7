package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"golang.org/x/text/message"

	"github.com/sells-group/costing-cli/internal/editor"
	"github.com/sells-group/costing-cli/internal/model"
	"github.com/sells-group/costing-cli/internal/pricing"
	"github.com/sells-group/costing-cli/internal/units"
)

const replHelp = `commands:
  show                      cost table of the open recipe
  add ID QTY [UNIT]         add a line (unit defaults to the ingredient's)
  qty N QTY                 change the quantity of line N
  rm N                      remove line N (saved immediately)
  portions P                set the number of portions
  price [GP] [STRATEGY]     recommend a sell price
  ingredients [TEXT]        list catalog ingredients
  open ID                   switch to another recipe
  reload                    reload from the backend (skipped after recent edits)
  save                      save now
  status                    autosave and edit status
  quit                      save pending edits and exit`

// repl drives an editor session from line-oriented input.
type repl struct {
	sess        *editor.Session
	out         io.Writer
	p           *message.Printer
	defGP       float64
	defStrategy model.Strategy
}

var errQuit = eris.New("quit")

// run reads commands until quit or EOF. Command errors are printed and the
// loop continues. Pending edits are saved on the way out.
func (r *repl) run(ctx context.Context, in io.Reader) error {
	sc := bufio.NewScanner(in)
	r.printf("> ")
	for sc.Scan() {
		if ctx.Err() != nil {
			break
		}
		err := r.exec(ctx, strings.Fields(sc.Text()))
		if eris.Is(err, errQuit) {
			break
		}
		if err != nil {
			r.printf("error: %s\n", err)
		}
		r.printf("> ")
	}
	if err := sc.Err(); err != nil {
		return eris.Wrap(err, "edit: read input")
	}
	return r.flush(ctx)
}

func (r *repl) flush(ctx context.Context) error {
	if ctx.Err() != nil {
		ctx = context.WithoutCancel(ctx)
	}
	if err := r.sess.SaveNow(ctx); err != nil {
		return eris.Wrap(err, "edit: save on exit")
	}
	return nil
}

func (r *repl) exec(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(args[0]), args[1:]

	switch cmd {
	case "help", "?":
		r.printf("%s\n", replHelp)
	case "quit", "exit", "q":
		return errQuit
	case "show", "ls":
		return r.show()
	case "add":
		if len(args) < 2 {
			return eris.New("usage: add ID QTY [UNIT]")
		}
		qty, err := parseQuantity(args[1])
		if err != nil {
			return err
		}
		li := model.LineItem{IngredientID: args[0], Quantity: qty}
		if len(args) > 2 {
			li.Unit = strings.Join(args[2:], " ")
		}
		calc, err := r.sess.AddLine(li)
		if err != nil {
			return err
		}
		r.printf("added %s: %s\n", calc.IngredientName, money(r.p, calc.YieldAdjustedCost))
		if ing, ok := r.sess.Catalog()[li.IngredientID]; ok && units.Normalize(calc.Unit) != units.Normalize(ing.Unit) && !units.Convertible(calc.Unit, ing.Unit) {
			r.printf("note: %s does not convert to %s, priced per %s\n", calc.Unit, ing.Unit, ing.Unit)
		}
	case "qty":
		if len(args) != 2 {
			return eris.New("usage: qty N QTY")
		}
		idx, err := parseIndex(args[0])
		if err != nil {
			return err
		}
		qty, err := parseQuantity(args[1])
		if err != nil {
			return err
		}
		calc, err := r.sess.UpdateQuantity(idx, qty)
		if err != nil {
			return err
		}
		r.printf("line %d: %s\n", idx+1, money(r.p, calc.YieldAdjustedCost))
	case "rm":
		if len(args) != 1 {
			return eris.New("usage: rm N")
		}
		idx, err := parseIndex(args[0])
		if err != nil {
			return err
		}
		if err := r.sess.RemoveLine(ctx, idx); err != nil {
			return err
		}
		r.printf("removed line %d\n", idx+1)
	case "portions":
		if len(args) != 1 {
			return eris.New("usage: portions P")
		}
		p, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return eris.Errorf("invalid portions %q", args[0])
		}
		return r.sess.SetPortions(ctx, p)
	case "price":
		return r.price(args)
	case "ingredients", "ing":
		r.ingredients(strings.Join(args, " "))
	case "open":
		if len(args) != 1 {
			return eris.New("usage: open ID")
		}
		if err := r.flush(ctx); err != nil {
			return err
		}
		if err := r.sess.Open(ctx, args[0]); err != nil {
			return err
		}
		return r.show()
	case "reload":
		res, err := r.sess.Reload(ctx)
		if err != nil {
			return err
		}
		r.printf("lines: %s, portions: %s\n", reloaded(res.Lines), reloaded(res.Portions))
	case "save":
		if err := r.sess.SaveNow(ctx); err != nil {
			return err
		}
		r.printf("saved\n")
	case "status":
		r.status()
	default:
		return eris.Errorf("unknown command %q (try help)", cmd)
	}
	return nil
}

func (r *repl) show() error {
	rec, err := r.sess.Recipe()
	if err != nil {
		return err
	}
	rc, err := r.sess.Cost()
	if err != nil {
		return err
	}
	formatRecipeCost(r.out, r.p, rec, rc)
	return nil
}

func (r *repl) price(args []string) error {
	rec, err := r.sess.Recipe()
	if err != nil {
		return err
	}
	gp, strategy := pricingTarget(rec, r.defGP, r.defStrategy)
	if len(args) > 0 {
		if gp, err = strconv.ParseFloat(strings.TrimSuffix(args[0], "%"), 64); err != nil {
			return eris.Errorf("invalid gross profit %q", args[0])
		}
		if err := pricing.ValidateTarget(gp); err != nil {
			return err
		}
	}
	if len(args) > 1 {
		if strategy, err = pricing.ParseStrategy(args[1]); err != nil {
			return err
		}
	}
	pr, ok := r.sess.Price(gp, strategy)
	if !ok {
		r.printf("nothing to price yet\n")
		return nil
	}
	formatPricing(r.out, r.p, pr)
	return nil
}

func (r *repl) ingredients(filter string) {
	cat := r.sess.Catalog()
	ids := make([]string, 0, len(cat))
	for id, ing := range cat {
		if filter == "" || strings.Contains(strings.ToLower(ing.Name), strings.ToLower(filter)) ||
			strings.Contains(strings.ToLower(id), strings.ToLower(filter)) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)

	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tUNIT\tCOST")
	for _, id := range ids {
		ing := cat[id]
		price := "-"
		if ing.CostPerUnit != nil {
			price = money(r.p, *ing.CostPerUnit)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", id, ing.Name, ing.Unit, price)
	}
	_ = w.Flush()
}

func (r *repl) status() {
	st := r.sess.AutosaveState()
	r.printf("autosave: %s", st.Status)
	if st.LastError != "" {
		r.printf(" (%s)", st.LastError)
	}
	r.printf("\n")
	for _, c := range []model.Collection{model.CollectionIngredients, model.CollectionPortions} {
		f := r.sess.Dirty(c)
		if f.HasManualChange {
			r.printf("%s: edited %s\n", c, f.LastChangeAt.Format("15:04:05"))
		} else {
			r.printf("%s: clean\n", c)
		}
	}
}

func (r *repl) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.out, format, args...)
}

// parseIndex converts a 1-based line number to an index.
func parseIndex(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, eris.Errorf("invalid line number %q", s)
	}
	return n - 1, nil
}

func parseQuantity(s string) (float64, error) {
	q, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, eris.Errorf("invalid quantity %q", s)
	}
	return q, nil
}

func reloaded(ok bool) string {
	if ok {
		return "reloaded"
	}
	return "kept local edits"
}
