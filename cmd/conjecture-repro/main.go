// Command conjecture-repro replays a single persisted or crash-logged
// record against a named property, and optionally re-minimizes it by
// handing it to the engine as the sole seed of a fresh database.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/conjecture-labs/conjecture/internal/conjecture/data"
	"github.com/conjecture-labs/conjecture/internal/conjecture/database"
	"github.com/conjecture-labs/conjecture/internal/conjecture/engine"
	"github.com/conjecture-labs/conjecture/internal/conjecture/examples"
)

func main() {
	var (
		in          string
		logPath     string
		lineNum     int
		out         string
		propName    string
		seed        int64
		lang        string
		maxExamples int
		minimize    bool
	)
	flag.StringVar(&in, "in", "", "input file holding a raw or hex-encoded record")
	flag.StringVar(&logPath, "log", "", "optional crash log (ts\\t0xHEX\\tmsg per line) to read from instead of -in")
	flag.IntVar(&lineNum, "line", 0, "1-based line number in --log to reproduce (default=last non-empty line)")
	flag.StringVar(&out, "out", "", "path to write the re-minimized record to, hex-encoded")
	flag.StringVar(&propName, "property", "minimize-down-to", fmt.Sprintf("property to replay against (%s)", strings.Join(examples.Names(), "|")))
	flag.Int64Var(&seed, "seed", 1, "random seed used only if re-minimizing")
	flag.StringVar(&lang, "lang", "en", "message language (ja|en)")
	flag.IntVar(&maxExamples, "examples", 1000, "valid-example budget, used only if re-minimizing")
	flag.BoolVar(&minimize, "minimize", true, "re-minimize an interesting replay via -out")
	flag.Parse()

	L := getLocale(lang)

	raw, err := readInput(in, logPath, lineNum)
	if err != nil {
		fatal(L, err)
	}
	record := engine.DecodeRecord(raw)

	prop, err := examples.Lookup(propName)
	if err != nil {
		fatal(L, err)
	}

	source := data.NewRecordedSource(record)
	status := prop(source)
	result := source.IntoResult(status)

	if status.Kind != data.Interesting {
		fmt.Println(L.ok())
		return
	}
	fmt.Println(L.fail(status.Label, result.Record))

	if !minimize || out == "" {
		return
	}

	dir, err := os.MkdirTemp("", "conjecture-repro-*")
	if err != nil {
		fatal(L, "creating scratch database: ", err)
	}
	defer os.RemoveAll(dir)

	dd, err := database.NewDirectoryDatabase(dir)
	if err != nil {
		fatal(L, "opening scratch database: ", err)
	}
	if err := dd.Save(propName, engine.EncodeRecord(result.Record)); err != nil {
		fatal(L, "seeding scratch database: ", err)
	}

	eng := engine.New(propName, maxExamples, engine.AllPhases(), seed, dd)
	for {
		s := eng.NextSource()
		if s == nil {
			break
		}
		eng.MarkFinished(s, prop(s))
	}

	best := eng.BestSource()
	if best == nil {
		fatal(L, "re-minimization produced no best example")
	}
	minimized := eng.ListMinimizedExamples()
	var minimizedRecord []uint64
	for _, r := range minimized {
		if r.Status.Label == status.Label {
			minimizedRecord = r.Record
			break
		}
	}

	if err := os.WriteFile(out, []byte(hex.EncodeToString(engine.EncodeRecord(minimizedRecord))), 0o644); err != nil {
		fatal(L, "writing minimized output: ", err)
	}
	fmt.Println(L.minDone(out))
}

func readInput(in, logPath string, lineNum int) ([]byte, error) {
	var s string
	if logPath != "" {
		lb, err := os.ReadFile(logPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read log: %w", err)
		}
		lines := strings.Split(string(lb), "\n")
		pick := -1
		if lineNum > 0 {
			if lineNum-1 < len(lines) {
				pick = lineNum - 1
			}
		} else {
			for i := len(lines) - 1; i >= 0; i-- {
				if strings.TrimSpace(lines[i]) != "" {
					pick = i
					break
				}
			}
		}
		if pick < 0 {
			return nil, fmt.Errorf("no usable lines in log")
		}
		s = strings.TrimSpace(lines[pick])
	} else {
		if in == "" {
			return nil, fmt.Errorf("--in or --log is required")
		}
		b, err := os.ReadFile(in)
		if err != nil {
			return nil, fmt.Errorf("failed to read input: %w", err)
		}
		s = strings.TrimSpace(string(b))
	}
	return decodeRecordText(s)
}

// decodeRecordText accepts either a bare hex record or a tab-separated
// crash-log line (ts\t0xHEX\tmsg), in both cases falling back to the raw
// bytes if hex decoding fails.
func decodeRecordText(s string) ([]byte, error) {
	if strings.Contains(s, "\t") {
		parts := strings.SplitN(s, "\t", 3)
		if len(parts) >= 2 {
			s = parts[1]
		}
	}
	h := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if dec, err := hex.DecodeString(h); err == nil && len(dec) > 0 {
		return dec, nil
	}
	return []byte(s), nil
}

type locale struct {
	ok      func() string
	fail    func(label uint64, record []uint64) string
	minDone func(path string) string
}

func getLocale(lang string) locale {
	switch lang {
	case "ja", "jp", "japanese":
		return locale{
			ok:      func() string { return "再現に失敗（問題なし）" },
			fail:    func(label uint64, record []uint64) string { return fmt.Sprintf("再現成功: label=%d record=%v", label, record) },
			minDone: func(p string) string { return "最小化完了: " + p },
		}
	default:
		return locale{
			ok:      func() string { return "Reproduction failed (no issue)" },
			fail:    func(label uint64, record []uint64) string { return fmt.Sprintf("Reproduced: label=%d record=%v", label, record) },
			minDone: func(p string) string { return "Minimized written: " + p },
		}
	}
}

func fatal(L locale, a ...any) {
	fmt.Fprintln(os.Stderr, a...)
	os.Exit(1)
}
