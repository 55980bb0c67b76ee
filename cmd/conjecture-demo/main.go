// Command conjecture-demo runs the generation loop end to end against one
// of the named example properties, printing the minimized examples it
// finds for each label.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/conjecture-labs/conjecture/internal/conjecture/database"
	"github.com/conjecture-labs/conjecture/internal/conjecture/engine"
	"github.com/conjecture-labs/conjecture/internal/conjecture/examples"
)

func main() {
	var (
		propName    string
		maxExamples int
		seed        int64
		dbPath      string
		noShrink    bool
		lang        string
		watch       bool
	)
	flag.StringVar(&propName, "property", "minimize-down-to", fmt.Sprintf("property to run (%s)", strings.Join(examples.Names(), "|")))
	flag.IntVar(&maxExamples, "examples", 1000, "target valid-example count")
	flag.Int64Var(&seed, "seed", 0, "random seed (0=process id)")
	flag.StringVar(&dbPath, "db", "", "directory database path (empty=no persistence)")
	flag.BoolVar(&noShrink, "no-shrink", false, "disable the shrink phase")
	flag.StringVar(&lang, "lang", "en", "message language (ja|en)")
	flag.BoolVar(&watch, "watch", false, "log every save observed under -db, this run's own included (requires -db)")
	flag.Parse()

	L := getLocale(lang)

	prop, err := examples.Lookup(propName)
	if err != nil {
		fatal(L, err)
	}

	var db database.Database = database.NoDatabase{}
	if dbPath != "" {
		dd, err := database.NewDirectoryDatabase(dbPath)
		if err != nil {
			fatal(L, "opening database: ", err)
		}
		db = dd
		if watch {
			wd, err := database.NewWatchingDatabase(dd)
			if err != nil {
				fatal(L, "watching database: ", err)
			}
			defer wd.Close()
			go func() {
				for change := range wd.Changes() {
					fmt.Println(L.externalChange(change.KeyHash))
				}
			}()
			db = wd
		}
	} else if watch {
		fatal(L, "-watch requires -db")
	}

	phases := engine.AllPhases()
	if noShrink {
		phases = nil
	}
	if seed == 0 {
		seed = defaultSeed()
	}

	eng := engine.New(propName, maxExamples, phases, seed, db)
	for {
		source := eng.NextSource()
		if source == nil {
			break
		}
		eng.MarkFinished(source, prop(source))
	}

	if eng.WasUnsatisfiable() {
		fmt.Println(L.unsatisfiable())
		return
	}

	found := eng.ListMinimizedExamples()
	if len(found) == 0 {
		fmt.Println(L.noFailures())
		return
	}
	fmt.Println(L.found(len(found)))
	for _, r := range found {
		fmt.Printf("  label=%d record=%v\n", r.Status.Label, r.Record)
	}
}

type locale struct {
	unsatisfiable  func() string
	noFailures     func() string
	found          func(n int) string
	externalChange func(keyHash string) string
}

func getLocale(lang string) locale {
	switch lang {
	case "ja", "jp", "japanese":
		return locale{
			unsatisfiable:  func() string { return "充足不能: 有効な実行が一つもありません" },
			noFailures:     func() string { return "失敗は見つかりませんでした" },
			found:          func(n int) string { return fmt.Sprintf("%d 個のラベルで最小化された例が見つかりました:", n) },
			externalChange: func(keyHash string) string { return fmt.Sprintf("他のプロセスが保存しました: key=%s", keyHash) },
		}
	default:
		return locale{
			unsatisfiable:  func() string { return "Unsatisfiable: no valid execution ever occurred" },
			noFailures:     func() string { return "No failures found" },
			found:          func(n int) string { return fmt.Sprintf("Found minimized examples for %d label(s):", n) },
			externalChange: func(keyHash string) string { return fmt.Sprintf("external save observed: key=%s", keyHash) },
		}
	}
}

func fatal(L locale, a ...any) {
	fmt.Fprintln(os.Stderr, a...)
	os.Exit(1)
}

func defaultSeed() int64 {
	return int64(os.Getpid())
}
