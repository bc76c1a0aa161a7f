// Command signspell reconstructs a Tagalog sentence from per-frame letter
// labels without running the server or any recognition model.
//
// Labels are read from the arguments or, when there are none, from stdin
// separated by whitespace. A "-" marks a frame without a detected hand.
//
//	signspell K K K - A A A
//	echo "K K K A A A" | signspell -v
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/MrWong99/signspeak/internal/config"
	"github.com/MrWong99/signspeak/internal/lexicon"
	"github.com/MrWong99/signspeak/internal/reconstruct"
	"github.com/MrWong99/signspeak/internal/reconstruct/spell"
	"github.com/MrWong99/signspeak/pkg/types"
)

// absentMarker stands for a frame without a hand.
const absentMarker = "-"

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("signspell", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "optional YAML config supplying pipeline and lexicon settings")
	lexPath := fs.String("lexicon", "", "lexicon YAML file (overrides config; default: built-in Tagalog)")
	window := fs.Int("window", 0, "frames per voting window (overrides config)")
	verbose := fs.Bool("v", false, "print every pipeline stage")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Error("load config", "err", err)
		return 1
	}
	if *lexPath != "" {
		cfg.Lexicon.Path = *lexPath
	}
	if *window > 0 {
		cfg.Pipeline.WindowSize = *window
	}

	raw := fs.Args()
	if len(raw) == 0 {
		if raw, err = readFields(stdin); err != nil {
			logger.Error("read labels", "err", err)
			return 1
		}
	}
	labels, err := parseLabels(raw)
	if err != nil {
		logger.Error("parse labels", "err", err)
		return 1
	}

	rec, err := newReconstructor(cfg)
	if err != nil {
		logger.Error("build pipeline", "err", err)
		return 1
	}
	res, err := rec.Reconstruct(context.Background(), labels)
	if err != nil {
		logger.Error("reconstruct", "err", err)
		return 1
	}

	if *verbose {
		printStages(stdout, res)
		return 0
	}
	fmt.Fprintln(stdout, res.Sentence)
	return 0
}

// loadConfig reads path when given and returns defaults otherwise.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	cfg := &config.Config{}
	cfg.ApplyDefaults()
	return cfg, nil
}

func newReconstructor(cfg *config.Config) (*reconstruct.Reconstructor, error) {
	var (
		lx  *lexicon.Lexicon
		err error
	)
	if cfg.Lexicon.Path != "" {
		lx, err = lexicon.Load(cfg.Lexicon.Path)
	} else {
		lx, err = lexicon.Default()
	}
	if err != nil {
		return nil, err
	}
	p := cfg.Pipeline
	return reconstruct.New(lx,
		reconstruct.WithWindowSize(p.WindowSize),
		reconstruct.WithCapitalization(p.Capitalization, p.Language),
		reconstruct.WithCorrectorOptions(
			reconstruct.WithSpellChecker(spell.New(lx)),
			reconstruct.WithMaxTokenLength(p.MaxTokenLength),
		),
	)
}

func readFields(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)
	for sc.Scan() {
		out = append(out, sc.Text())
	}
	return out, sc.Err()
}

// parseLabels accepts single letters in either case and the absent marker.
func parseLabels(raw []string) ([]types.FrameLabel, error) {
	labels := make([]types.FrameLabel, len(raw))
	for i, s := range raw {
		if s == absentMarker {
			labels[i] = types.Absent()
			continue
		}
		l, err := types.ParseLabel(strings.ToUpper(s))
		if err != nil {
			return nil, fmt.Errorf("label %d: %w", i, err)
		}
		labels[i] = l
	}
	return labels, nil
}

func printStages(w io.Writer, res *reconstruct.Result) {
	fmt.Fprintf(w, "letters:    %s\n", strings.Join(res.Letters, " "))
	fmt.Fprintf(w, "compressed: %s\n", res.Compressed)
	for _, c := range res.Corrections {
		fmt.Fprintf(w, "token:      %-12s -> %-12s (%s)\n", c.Token, c.Word, c.Method)
	}
	fmt.Fprintf(w, "sentence:   %s\n", res.Sentence)
}
