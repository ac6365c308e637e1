package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/rewired-gh/pdtta/internal/automaton"
	"github.com/rewired-gh/pdtta/internal/config"
	"github.com/rewired-gh/pdtta/internal/events"
	"github.com/rewired-gh/pdtta/internal/learner"
	"github.com/rewired-gh/pdtta/internal/logger"
	"github.com/rewired-gh/pdtta/internal/models"
	"github.com/rewired-gh/pdtta/internal/pta"
	"github.com/rewired-gh/pdtta/internal/storage"
)

var configPath = flag.String("config", "", "Path to configuration file (defaults are used when empty)")

const (
	filePermissions = 0o644
	dirPermissions  = 0o755
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: pdtta [-config file] <command> [args]

Commands:
  train <sequences.json>   learn a model and store it
  pta <sequences.json>     build a prefix tree, resolve critical areas and store it
  sample <model-id>        print sampled sequences
  export <model-id>        write JSON, Treba and Graphviz exports
  list                     list stored models
  delete <model-id>        remove a stored model
`)
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	// Load configuration
	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	if *configPath != "" {
		logger.Debug("Configuration loaded from %s", *configPath)
	}

	// Initialize storage
	store, err := storage.New(cfg.Storage.DBPath, cfg.Storage.MaxModels, cfg.Storage.ExportDir, filePermissions, dirPermissions)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}

	cmd, args := flag.Arg(0), flag.Args()[1:]
	runErr := run(cmd, args, cfg, store)
	if err := store.Close(); err != nil {
		logger.Error("Failed to close storage: %v", err)
	}
	if runErr != nil {
		logger.Error("%s failed: %v", cmd, runErr)
		os.Exit(1)
	}
}

func run(cmd string, args []string, cfg *config.Config, store *storage.Storage) error {
	needArg := func() (string, error) {
		if len(args) != 1 {
			return "", fmt.Errorf("%s expects exactly one argument", cmd)
		}
		return args[0], nil
	}

	switch cmd {
	case "train":
		path, err := needArg()
		if err != nil {
			return err
		}
		return runTrain(path, cfg, store)
	case "pta":
		path, err := needArg()
		if err != nil {
			return err
		}
		return runPTA(path, cfg, store)
	case "sample":
		id, err := needArg()
		if err != nil {
			return err
		}
		return runSample(id, cfg, store)
	case "export":
		id, err := needArg()
		if err != nil {
			return err
		}
		rec, m, err := store.Load(id)
		if err != nil {
			return err
		}
		return exportModel(store, rec, m)
	case "list":
		return runList(store)
	case "delete":
		id, err := needArg()
		if err != nil {
			return err
		}
		if err := store.Delete(id); err != nil {
			return err
		}
		fmt.Printf("Deleted %s\n", id)
		return nil
	default:
		usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func runTrain(path string, cfg *config.Config, store *storage.Storage) error {
	startTime := time.Now()

	seqs, err := models.LoadSequences(path)
	if err != nil {
		return err
	}
	logger.Info("Loaded %d sequences from %s", len(seqs), path)

	fitter, err := cfg.Fitter()
	if err != nil {
		return err
	}
	l := learner.New(
		learner.WithOmitFraction(cfg.Learner.OmitFraction),
		learner.WithFitter(fitter),
	)

	var (
		m     automaton.Model
		stats learner.Stats
	)
	if isTimed(seqs) {
		m, stats, err = l.Train(seqs)
	} else {
		m, stats, err = l.TrainUntimed(seqs)
	}
	if err != nil {
		return fmt.Errorf("failed to train: %w", err)
	}
	if stats.OmittedSequences > 0 {
		logger.Warn("%d of %d sequences fell outside the pruned automaton and were not used",
			stats.OmittedSequences, stats.Sequences)
	}

	rec, err := store.Save(path, m, stats)
	if err != nil {
		return err
	}
	if err := exportModel(store, rec, m); err != nil {
		return err
	}
	rotate(store)

	logger.Info("Training completed in %v", time.Since(startTime))
	fmt.Println(rec.ID)
	return nil
}

// isTimed reports whether any sequence carries time values; the learner
// rejects mixed input.
func isTimed(seqs []models.Sequence) bool {
	for _, s := range seqs {
		if s.Timed() && s.Len() > 0 {
			return true
		}
	}
	return false
}

func runPTA(path string, cfg *config.Config, store *storage.Storage) error {
	seqs, err := models.LoadSequences(path)
	if err != nil {
		return err
	}

	evs, err := loadEvents(cfg, seqs)
	if err != nil {
		return err
	}
	strategy, err := cfg.MergeStrategy()
	if err != nil {
		return err
	}

	tree := pta.New(evs, pta.WithMergeStrategy(strategy))
	if err := tree.AddSequences(seqs); err != nil {
		return err
	}
	logger.Info("Built prefix tree with %d states (depth %d)", len(tree.LiveStates()), tree.Depth())

	removed := tree.RemoveCriticalTransitions()
	logger.Info("Removed %d critical-area transitions, %d states remain", removed, len(tree.LiveStates()))

	a, err := tree.ToAutomaton()
	if err != nil {
		return fmt.Errorf("failed to convert prefix tree: %w", err)
	}

	metrics := map[string]int{
		"sequences":            len(seqs),
		"critical_transitions": removed,
		"depth":                tree.Depth(),
	}
	rec, err := store.Save(path, a, metrics)
	if err != nil {
		return err
	}
	if err := exportModel(store, rec, a); err != nil {
		return err
	}
	rotate(store)

	fmt.Println(rec.ID)
	return nil
}

// loadEvents reads the configured event definitions. Without a file every
// symbol seen in the data becomes an untimed event.
func loadEvents(cfg *config.Config, seqs []models.Sequence) (*events.Set, error) {
	if cfg.Events.File != "" {
		return events.LoadFile(cfg.Events.File)
	}
	seen := make(map[string]bool)
	var names []string
	for _, s := range seqs {
		for _, sym := range s.Symbols {
			if !seen[sym] {
				seen[sym] = true
				names = append(names, sym)
			}
		}
	}
	return events.Untimed(names...)
}

func runSample(id string, cfg *config.Config, store *storage.Storage) error {
	_, m, err := store.Load(id)
	if err != nil {
		return err
	}

	seed := cfg.Sampler.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	m.SetRandom(rand.New(rand.NewSource(seed)))

	seqs, err := m.SampleSequences(cfg.Sampler.Count)
	if err != nil {
		var invErr *automaton.InvariantError
		if errors.As(err, &invErr) {
			return fmt.Errorf("model %s is broken: %w", id, err)
		}
		return err
	}
	for _, s := range seqs {
		fmt.Println(s.String())
	}
	return nil
}

func runList(store *storage.Storage) error {
	recs, err := store.List()
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Println("No stored models")
		return nil
	}
	for _, r := range recs {
		fmt.Printf("%s  %-5s  %4d states  %5d transitions  %s  %s\n",
			r.ID, r.Kind, r.States, r.Transitions, r.CreatedAt.Local().Format(time.DateTime), r.Name)
	}
	return nil
}

func exportModel(store *storage.Storage, rec storage.Record, m automaton.Model) error {
	paths, err := store.Export(rec, m)
	if err != nil {
		return fmt.Errorf("failed to export model %s: %w", rec.ID, err)
	}
	for _, p := range paths {
		logger.Info("Exported %s", p)
	}
	return nil
}

func rotate(store *storage.Storage) {
	if n, err := store.RotateModels(); err != nil {
		logger.Warn("Failed to rotate models: %v", err)
	} else if n > 0 {
		logger.Info("Rotated %d old models", n)
	}
}
