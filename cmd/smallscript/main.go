package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"smallscript/pkg/driver"
	"smallscript/pkg/errors"
)

const historyFile = ".smallscript_history"

func main() {
	engineFlag := flag.String("engine", "ast", "execution engine: ast or bytecode")
	exprFlag := flag.String("e", "", "run the given source and exit")
	cacheStatsFlag := flag.Bool("cache-stats", false, "show inline cache statistics after execution (bytecode engine)")
	bytecodeFlag := flag.Bool("bytecode", false, "show compiled bytecode after execution (bytecode engine)")
	flag.Parse()

	engine, err := driver.ParseEngine(*engineFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(64)
	}

	sess := driver.NewSession(engine, os.Stdout)

	switch {
	case *exprFlag != "":
		runSource(sess, *exprFlag, *cacheStatsFlag, *bytecodeFlag)
	case flag.NArg() >= 1:
		data, err := os.ReadFile(flag.Arg(0))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(66)
		}
		runSource(sess, string(data), *cacheStatsFlag, *bytecodeFlag)
	default:
		repl(sess)
	}
}

func runSource(sess *driver.Session, src string, showStats, showBytecode bool) {
	if err := sess.RunString(src); err != nil {
		errors.DisplayError(src, err)
		os.Exit(70)
	}
	if showBytecode {
		if d, ok := sess.Disassemble(); ok {
			fmt.Fprint(os.Stderr, d)
		}
	}
	if showStats {
		if st, ok := sess.CacheStats(); ok {
			fmt.Fprintln(os.Stderr, "IC stats:", st)
		}
	}
}

// repl reads statements line by line into a persistent session, so
// definitions carry over. Ctrl+C cancels the current line, Ctrl+D exits.
func repl(sess *driver.Session) {
	fmt.Println("smallscript REPL (Ctrl+D exits)")

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	histPath := ""
	if home, err := os.UserHomeDir(); err == nil {
		histPath = filepath.Join(home, historyFile)
		if f, err := os.Open(histPath); err == nil {
			line.ReadHistory(f)
			f.Close()
		}
	}
	defer func() {
		if histPath == "" {
			return
		}
		if f, err := os.Create(histPath); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}()

	for {
		input, err := line.Prompt("> ")
		switch err {
		case nil:
		case liner.ErrPromptAborted:
			continue
		case io.EOF:
			fmt.Println()
			return
		default:
			fmt.Fprintln(os.Stderr, err)
			return
		}

		if strings.TrimSpace(input) == "" {
			continue
		}
		line.AppendHistory(input)

		if err := sess.RunString(input); err != nil {
			errors.DisplayError(input, err)
		}
	}
}
