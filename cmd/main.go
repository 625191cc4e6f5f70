package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/ergochat/readline"

	"github.com/drpcorg/recidx"
	"github.com/drpcorg/recidx/storage"
	"github.com/drpcorg/recidx/store"
	"github.com/drpcorg/recidx/utils"
)

var completer = readline.NewPrefixCompleter(
	readline.PcItem("help"),
	readline.PcItem("put"),
	readline.PcItem("set"),
	readline.PcItem("rm"),
	readline.PcItem("despawn"),
	readline.PcItem("step"),
	readline.PcItem("lookup"),
	readline.PcItem("one"),
	readline.PcItem("refresh"),
	readline.PcItem("force"),
	readline.PcItem("exit"),
	readline.PcItem("quit"),
)

func filterInput(r rune) (rune, bool) {
	switch r {
	// block CtrlZ feature
	case readline.CharCtrlZ:
		return r, false
	}
	return r, true
}

var ErrBadEntryID = errors.New("bad entry id")

func parseEntry(arg string) (store.ID, error) {
	arg = strings.TrimPrefix(arg, "e-")
	n, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrBadEntryID, arg)
	}
	return store.ID(n), nil
}

const usage = `put <value>           create an entry holding <value>
set <id> <value>      change the entry's record
rm <id>               drop the record from the entry
despawn <id>          remove the entry from the store
step                  advance the logical clock
lookup <value>        entries whose record equals <value> (stale until refresh)
one <value>           unique lookup
refresh               tick-idempotent refresh
force                 unconditional refresh
exit                  quit`

func main() {
	l, err := readline.NewEx(&readline.Config{
		Prompt:          "◌ ",
		HistoryFile:     "/tmp/recidx_readline.tmp",
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",

		HistorySearchFold:   true,
		FuncFilterInputRune: filterInput,
	})
	if err != nil {
		panic(err)
	}
	defer l.Close()

	st := store.NewStore()
	coll := store.NewCollection[string](st)
	idx, err := recidx.New[string](
		storage.NewHashmap("repl", coll, func(r string) string { return r }),
		recidx.Options{
			Name:   "repl",
			Policy: recidx.RefreshManual,
			Logger: utils.NewDefaultLogger(slog.LevelDebug),
		},
	)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(-1)
	}

	for {
		line, err := l.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				break
			} else {
				continue
			}
		} else if err == io.EOF {
			break
		}

		line = strings.TrimSpace(line)
		args := strings.Split(line, " ")
		cmd := args[0]
		args = args[1:]
		err = nil
		switch cmd {
		case "help":
			fmt.Println(usage)
		case "put":
			if len(args) != 1 {
				err = errors.New("usage: put <value>")
				break
			}
			id := st.NewEntry()
			coll.Put(id, args[0])
			fmt.Printf("%s = %q @%d\n", id, args[0], st.Tick())
		case "set":
			var id store.ID
			if len(args) != 2 {
				err = errors.New("usage: set <id> <value>")
				break
			}
			if id, err = parseEntry(args[0]); err != nil {
				break
			}
			if !coll.Update(id, func(r *string) { *r = args[1] }) {
				err = fmt.Errorf("no record on %s", id)
			}
		case "rm", "despawn":
			var id store.ID
			if len(args) != 1 {
				err = fmt.Errorf("usage: %s <id>", cmd)
				break
			}
			if id, err = parseEntry(args[0]); err != nil {
				break
			}
			if cmd == "despawn" {
				st.Despawn(id)
			} else if !coll.Remove(id) {
				err = fmt.Errorf("no record on %s", id)
			}
		case "step":
			fmt.Printf("tick %d\n", st.Step())
		case "lookup":
			if len(args) != 1 {
				err = errors.New("usage: lookup <value>")
				break
			}
			for id := range idx.Lookup(args[0]) {
				fmt.Println(id)
			}
		case "one":
			if len(args) != 1 {
				err = errors.New("usage: one <value>")
				break
			}
			id, ok, lerr := idx.LookupOne(args[0])
			if lerr != nil {
				err = lerr
			} else if !ok {
				fmt.Println("no match")
			} else {
				fmt.Println(id)
			}
		case "refresh":
			idx.Refresh()
		case "force":
			idx.ForceRefresh()
		case "exit", "quit":
			ex := 0
			if err = idx.Close(); err != nil {
				_, _ = fmt.Fprintln(os.Stderr, err.Error())
				ex = -1
			}
			os.Exit(ex)
		case "":
		default:
			_, _ = fmt.Fprintf(os.Stderr, "command unknown: %s\n", cmd)
		}

		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Error executing %s: %s\n", cmd, err.Error())
		}
	}
}
