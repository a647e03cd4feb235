package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/simpledl/gon/config"
	"github.com/simpledl/gon/dataset"
	"github.com/simpledl/gon/neuralnet"
	"github.com/simpledl/gon/onnx"
	"github.com/simpledl/gon/store"
	"github.com/simpledl/gon/text"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const usage = `usage: gon <command> [flags]

commands:
  train    train a new or stored model on a dataset
  export   write a stored model as an ONNX graph
  info     print the parameter shapes of a stored model
  predict  evaluate a stored model or ONNX graph on a dataset`

func main() {
	log.SetFlags(0)
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "train":
		err = train(args)
	case "export":
		err = export(args)
	case "info":
		err = info(args)
	case "predict":
		err = predict(args)
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v", os.Args[1], err)
	}
}

func train(args []string) error {
	fs := flag.NewFlagSet("train", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Path to YAML config")
	var o config.Overrides
	fs.StringVar(&o.Data, "data", "", "Dataset file")
	fs.StringVar(&o.Format, "format", "", "Dataset format: csv, text or cifar")
	fs.StringVar(&o.Shape, "shape", "", "Layer widths, e.g. 4,3,1")
	fs.StringVar(&o.Activations, "activations", "", "Activation per layer, e.g. relu,sigmoid")
	fs.Float64Var(&o.Alpha, "alpha", -1, "Learning rate")
	fs.Float64Var(&o.Lambda, "lambda", -1, "L2 regularization strength")
	fs.StringVar(&o.Penalty, "penalty", "", "L2 accumulation: pairwise or layer")
	fs.IntVar(&o.Epochs, "epochs", -1, "Number of gradient descent steps")
	fs.IntVar(&o.PrintEvery, "print-every", -1, "Log the cost every N epochs, 0 disables")
	fs.Float64Var(&o.TestSize, "test-size", -1, "Fraction of examples held out for dev accuracy")
	fs.Int64Var(&o.Seed, "seed", 0, "Weight initialization seed")
	fs.StringVar(&o.Model, "model", "", "Continue training a stored model")
	fs.StringVar(&o.CostLog, "cost-log", "", "Write the cost history as CSV")
	overwrite := fs.Bool("overwrite", false, "Save over the file given by -model")
	header := fs.Bool("header", false, "Skip the first CSV row")
	fs.Parse(args)

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		if cfg, err = config.Load(*cfgPath); err != nil {
			return err
		}
	}
	if err := cfg.ApplyOverrides(o); err != nil {
		return err
	}
	cfg.Overwrite = cfg.Overwrite || *overwrite
	cfg.Header = cfg.Header || *header
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	manager, err := store.NewManager(cfg.Model)
	if err != nil {
		return err
	}
	if manager.Model() == nil {
		if err := createModel(manager, cfg); err != nil {
			return err
		}
	}
	model := manager.Model()
	log.Printf("model %s", model.Describe())

	split, err := loadSplit(cfg, model.Vectorizer)
	if err != nil {
		return err
	}

	var callbacks []neuralnet.Callback
	var costLog *neuralnet.CSVLogger
	if cfg.CostLog != "" {
		costLog = neuralnet.NewCSVLogger(cfg.CostLog)
		callbacks = append(callbacks, costLog)
	}
	trainer := neuralnet.NewTrainer(log.Default(), callbacks...)
	result, err := trainer.Train(model, split.XTrain, split.YTrain, cfg.Epochs, cfg.PrintEvery)
	if err != nil {
		return err
	}
	if costLog != nil && costLog.Err() != nil {
		log.Printf("cost log: %v", costLog.Err())
	}
	log.Printf("training set accuracy: %.02f%%", 100*result.Accuracy)
	if split.XDev != nil {
		stats, err := neuralnet.TrainingStats(result.Model, split.XDev, split.YDev)
		if err != nil {
			return err
		}
		log.Print(stats)
	}

	manager.Update(result.Model)
	path, err := manager.Save(cfg.Overwrite)
	if err != nil {
		return err
	}
	log.Printf("saved model to %s", path)
	return nil
}

func createModel(manager *store.Manager, cfg *config.Config) error {
	if len(cfg.Shape) == 0 {
		return errors.New("a new model needs -shape and -activations")
	}
	acts, err := cfg.ActivationFuncs()
	if err != nil {
		return err
	}
	params, err := cfg.Params()
	if err != nil {
		return err
	}
	var vectorizer neuralnet.Vectorizer
	if cfg.Format == config.FormatText {
		if cfg.Tokenizer != "" {
			vectorizer = text.NewTokenVectorizer(cfg.Tokenizer, cfg.Buckets)
		} else {
			vectorizer = text.NewHashingVectorizer(cfg.Buckets)
		}
	}
	var opts []neuralnet.Option
	if cfg.Seed != 0 {
		opts = append(opts, neuralnet.WithSeed(cfg.Seed))
	}
	if cfg.Xavier {
		opts = append(opts, neuralnet.WithXavier())
	}
	_, err = manager.Create(cfg.Shape, acts, vectorizer, params, opts...)
	return err
}

func loadSplit(cfg *config.Config, vectorizer neuralnet.Vectorizer) (*dataset.Split, error) {
	var loader dataset.Loader
	switch cfg.Format {
	case config.FormatText:
		loader = dataset.TextLoader{Vectorizer: vectorizer, Header: cfg.Header}
	case config.FormatCIFAR:
		loader = dataset.CIFAR10Loader{}
	default:
		loader = dataset.CSVLoader{LabelColumn: cfg.LabelColumn, Header: cfg.Header}
	}
	split, err := loader.Load(cfg.Data, cfg.TestSize)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", cfg.Data, err)
	}
	return split, nil
}

func export(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	modelPath := fs.String("model", "", "Stored model")
	out := fs.String("out", "model.onnx", "ONNX output file")
	producer := fs.String("producer", "gon", "Producer name recorded in the graph")
	fs.Parse(args)

	manager, err := store.NewManager(*modelPath)
	if err != nil {
		return err
	}
	if manager.Model() == nil {
		return store.ErrNoModel
	}
	if err := onnx.Save(manager.Model(), *out, *producer); err != nil {
		return err
	}
	log.Printf("wrote %s", *out)
	return nil
}

func info(args []string) error {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	modelPath := fs.String("model", "", "Stored model")
	fs.Parse(args)

	manager, err := store.NewManager(*modelPath)
	if err != nil {
		return err
	}
	shapes, err := manager.Shapes()
	if err != nil {
		return err
	}
	model := manager.Model()
	fmt.Println(shapes)
	fmt.Printf("alpha=%v lambda=%v penalty=%v\n", model.Params.Alpha, model.Params.Lambda, model.Params.Penalty)
	for i, l := range model.Layers {
		fmt.Printf("layer %d: %v\n", i+1, l.Activation.Kind())
	}
	return nil
}

func predict(args []string) error {
	fs := flag.NewFlagSet("predict", flag.ExitOnError)
	cfg := config.Default()
	cfg.TestSize = 0
	modelPath := fs.String("model", "", "Stored model, also supplies the text vectorizer")
	graphPath := fs.String("onnx", "", "Evaluate an exported ONNX graph instead of the stored model")
	fs.StringVar(&cfg.Data, "data", "", "Dataset file")
	fs.StringVar(&cfg.Format, "format", cfg.Format, "Dataset format: csv, text or cifar")
	fs.BoolVar(&cfg.Header, "header", false, "Skip the first CSV row")
	fs.Parse(args)

	manager, err := store.NewManager(*modelPath)
	if err != nil {
		return err
	}
	var vectorizer neuralnet.Vectorizer
	if model := manager.Model(); model != nil {
		vectorizer = model.Vectorizer
	}
	split, err := loadSplit(cfg, vectorizer)
	if err != nil {
		return err
	}

	var labels *mat.Dense
	if *graphPath != "" {
		labels, err = runGraph(*graphPath, split.XTrain)
	} else if manager.Model() != nil {
		labels, err = neuralnet.Predict(manager.Model(), split.XTrain)
	} else {
		err = errors.New("predict needs -model or -onnx")
	}
	if err != nil {
		return err
	}

	truth := classLabels(split.YTrain)
	hits := 0
	for j, v := range labels.RawRowView(0) {
		fmt.Println(v)
		if v == truth[j] {
			hits++
		}
	}
	_, m := labels.Dims()
	log.Printf("accuracy: %.02f%%", 100*float64(hits)/float64(m))
	return nil
}

func runGraph(path string, x *mat.Dense) (*mat.Dense, error) {
	mp, err := onnx.Load(path)
	if err != nil {
		return nil, err
	}
	if mp.Graph == nil {
		return nil, fmt.Errorf("%s: %w: no graph", path, onnx.ErrMalformed)
	}
	out, err := onnx.Run(mp.Graph, onnx.Inputs(mp.Graph, x, neuralnet.BinaryThreshold))
	if err != nil {
		return nil, err
	}
	return out["Y"], nil
}

// classLabels reads one class per column from a label row or a one-hot block.
func classLabels(y *mat.Dense) []float64 {
	r, c := y.Dims()
	if r == 1 {
		return mat.Row(nil, 0, y)
	}
	out := make([]float64, c)
	col := make([]float64, r)
	for j := range out {
		out[j] = float64(floats.MaxIdx(mat.Col(col, j, y)))
	}
	return out
}
