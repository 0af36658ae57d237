package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"

	"noiseshield/db"
	"noiseshield/engine"
)

func main() {
	domainFlag := flag.String("domain", "all", "domain to train (soil, health, water or all)")
	outDir := flag.String("out", "./models", "bundle output directory")
	samples := flag.Int("samples", 400, "synthetic samples per domain")
	subModels := flag.Int("submodels", 3, "ensemble size")
	epsilon := flag.Float64("epsilon", 0.04, "sub-model coefficient perturbation")
	epochs := flag.Int("epochs", 500, "gradient descent epochs")
	learningRate := flag.Float64("lr", 0.1, "gradient descent learning rate")
	testRatio := flag.Float64("test_ratio", 0.2, "held-out test ratio")
	dbPath := flag.String("db", "", "optional sqlite path for the training log")
	flag.Parse()

	var domains []engine.Domain
	if *domainFlag == "all" {
		domains = engine.Domains()
	} else {
		domain, err := engine.ParseDomain(*domainFlag)
		if err != nil {
			log.Fatalf("invalid domain: %v", err)
		}
		domains = []engine.Domain{domain}
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("failed to create output dir: %v", err)
	}
	if *dbPath != "" {
		if err := db.InitDB(*dbPath); err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()
	}

	for _, domain := range domains {
		features, labels := synthesize(domain, *samples)
		bundle, accuracy, err := train(domain, features, labels, trainConfig{
			SubModels:    *subModels,
			Epsilon:      *epsilon,
			Epochs:       *epochs,
			LearningRate: *learningRate,
			TestRatio:    *testRatio,
		})
		if err != nil {
			log.Fatalf("training %s failed: %v", domain, err)
		}

		path := engine.BundlePath(*outDir, domain)
		if err := bundle.Save(path); err != nil {
			log.Fatalf("failed to save bundle: %v", err)
		}
		log.Printf("domain=%s models=%d accuracy=%.3f saved=%s",
			domain, len(bundle.Models), accuracy, path)

		if *dbPath != "" {
			if err := db.SaveTrainingLog(domain, len(bundle.Models), accuracy, len(labels)); err != nil {
				log.Printf("failed to log training run: %v", err)
			}
		}
	}
	fmt.Println("done")
}

type trainConfig struct {
	SubModels    int
	Epsilon      float64
	Epochs       int
	LearningRate float64
	TestRatio    float64
}

// synthesize draws a labeled dataset from the domain's reference
// distributions. Fixed per-domain seeds keep runs reproducible.
func synthesize(domain engine.Domain, n int) ([][]float64, []int) {
	features := make([][]float64, n)
	labels := make([]int, n)

	switch domain {
	case engine.DomainHealth:
		rng := rand.New(rand.NewSource(1))
		for i := 0; i < n; i++ {
			hb := clip(13+2.2*rng.NormFloat64(), 6, 20)
			wbc := clip(7000+2500*rng.NormFloat64(), 2000, 30000)
			plt := clip(250000+80000*rng.NormFloat64(), 70000, 800000)
			temp := clip(36.8+0.7*rng.NormFloat64(), 34.5, 41.5)
			pulse := clip(80+15*rng.NormFloat64(), 45, 160)
			features[i] = []float64{hb, wbc, plt, temp, pulse}
			if hb < 11 || (temp > 37.8 && wbc > 10000) || plt < 120000 {
				labels[i] = 1
			}
		}
	case engine.DomainWater:
		rng := rand.New(rand.NewSource(2))
		for i := 0; i < n; i++ {
			ph := clip(7.1+0.6*rng.NormFloat64(), 4.5, 9.5)
			turb := clip(math.Abs(5+15*rng.NormFloat64()), 0, 200)
			tds := clip(math.Abs(300+250*rng.NormFloat64()), 50, 2500)
			ec := clip(math.Abs(600+400*rng.NormFloat64()), 50, 4500)
			temp := clip(24+6*rng.NormFloat64(), 5, 45)
			features[i] = []float64{ph, turb, tds, ec, temp}
			if turb > 10 || tds > 1000 || ec > 2000 || ph < 6 || ph > 8.5 {
				labels[i] = 1
			}
		}
	case engine.DomainSoil:
		rng := rand.New(rand.NewSource(3))
		for i := 0; i < n; i++ {
			ph := clip(6.5+0.8*rng.NormFloat64(), 3.5, 9.5)
			nitrogen := clip(50+25*rng.NormFloat64(), 0, 200)
			phosphorus := clip(40+20*rng.NormFloat64(), 0, 200)
			potassium := clip(150+60*rng.NormFloat64(), 0, 300)
			moisture := clip(30+15*rng.NormFloat64(), 0, 100)
			features[i] = []float64{ph, nitrogen, phosphorus, potassium, moisture}
			if nitrogen < 30 || phosphorus < 20 || potassium < 80 || ph < 5.5 || ph > 8.5 {
				labels[i] = 1
			}
		}
	}
	return features, labels
}

// train fits the base logistic model, derives the perturbed sub-models and
// calibrates their noise sensitivities.
func train(domain engine.Domain, features [][]float64, labels []int, config trainConfig) (*engine.ModelBundle, float64, error) {
	schema, err := engine.SchemaFor(domain)
	if err != nil {
		return nil, 0, err
	}
	if config.SubModels < 1 {
		config.SubModels = 3
	}
	if config.TestRatio <= 0 || config.TestRatio >= 1 {
		config.TestRatio = 0.2
	}

	split := int(float64(len(features)) * (1 - config.TestRatio))
	trainX, testX := features[:split], features[split:]
	trainY, testY := labels[:split], labels[split:]

	means, stddevs := featureStats(trainX)
	profile := engine.NoiseProfile{Means: means, Stddevs: stddevs}

	trainZ := standardizeAll(trainX, profile)
	weights, bias := fitLogistic(trainZ, trainY, config.Epochs, config.LearningRate)

	// Sub-models by symmetric coefficient perturbation around the base fit.
	models := make([]engine.BundleModel, config.SubModels)
	for j := 0; j < config.SubModels; j++ {
		factor := 1 + float64(j-1)*config.Epsilon
		scaled := make([]float64, len(weights))
		for i, w := range weights {
			scaled[i] = w * factor
		}
		models[j] = engine.BundleModel{
			ID:      fmt.Sprintf("%s-%d", domain, j),
			Weights: scaled,
			Bias:    bias * factor,
		}
	}
	calibrateSensitivities(models, profile, testX, testY)

	bundle := &engine.ModelBundle{
		Domain:   domain,
		Features: schema.Features,
		Cutoff:   0.5,
		Profile:  profile,
		Models:   models,
	}

	accuracy := ensembleAccuracy(bundle, testX, testY)
	return bundle, accuracy, nil
}

func featureStats(features [][]float64) (means, stddevs []float64) {
	width := len(features[0])
	means = make([]float64, width)
	stddevs = make([]float64, width)
	for _, row := range features {
		for i, v := range row {
			means[i] += v
		}
	}
	for i := range means {
		means[i] /= float64(len(features))
	}
	for _, row := range features {
		for i, v := range row {
			d := v - means[i]
			stddevs[i] += d * d
		}
	}
	for i := range stddevs {
		stddevs[i] = math.Sqrt(stddevs[i] / float64(len(features)))
	}
	return means, stddevs
}

func standardizeAll(features [][]float64, profile engine.NoiseProfile) [][]float64 {
	z := make([][]float64, len(features))
	for i, row := range features {
		z[i] = profile.Standardize(row)
	}
	return z
}

// fitLogistic runs plain batch gradient descent on the logistic loss.
func fitLogistic(z [][]float64, labels []int, epochs int, learningRate float64) ([]float64, float64) {
	width := len(z[0])
	weights := make([]float64, width)
	bias := 0.0
	n := float64(len(z))

	for epoch := 0; epoch < epochs; epoch++ {
		gradW := make([]float64, width)
		gradB := 0.0
		for i, row := range z {
			logit := bias
			for f, w := range weights {
				logit += w * row[f]
			}
			p := 1.0 / (1.0 + math.Exp(-logit))
			residual := p - float64(labels[i])
			for f, v := range row {
				gradW[f] += residual * v
			}
			gradB += residual
		}
		for f := range weights {
			weights[f] -= learningRate * gradW[f] / n
		}
		bias -= learningRate * gradB / n
	}
	return weights, bias
}

// calibrateSensitivities measures each sub-model's accuracy slope under
// injected noise on held-out data. The slope feeds the interference
// aggregator's damping at inference time.
func calibrateSensitivities(models []engine.BundleModel, profile engine.NoiseProfile, testX [][]float64, testY []int) {
	const highLevel = 1.0
	for j := range models {
		rng := rand.New(rand.NewSource(int64(100 + j)))
		clean := modelAccuracy(models[j], profile, testX, testY, 0, rng)
		rng = rand.New(rand.NewSource(int64(100 + j)))
		noisy := modelAccuracy(models[j], profile, testX, testY, highLevel, rng)
		sensitivity := (clean - noisy) / highLevel
		if sensitivity < 0 {
			sensitivity = 0
		}
		models[j].Sensitivity = sensitivity
	}
}

func modelAccuracy(model engine.BundleModel, profile engine.NoiseProfile, testX [][]float64, testY []int, level float64, rng *rand.Rand) float64 {
	if len(testX) == 0 {
		return 0
	}
	correct := 0
	for i, row := range testX {
		perturbed := make([]float64, len(row))
		for f, v := range row {
			perturbed[f] = v + level*profile.Stddevs[f]*rng.NormFloat64()
		}
		z := profile.Standardize(perturbed)
		logit := model.Bias
		for f, w := range model.Weights {
			logit += w * z[f]
		}
		predicted := 0
		if logit >= 0 {
			predicted = 1
		}
		if predicted == testY[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(testX))
}

func ensembleAccuracy(bundle *engine.ModelBundle, testX [][]float64, testY []int) float64 {
	eng, err := engine.NewEngine(bundle, nil)
	if err != nil || len(testX) == 0 {
		return 0
	}
	schema, err := engine.SchemaFor(bundle.Domain)
	if err != nil {
		return 0
	}
	correct := 0
	for i, row := range testX {
		sample := make(map[string]float64, len(schema.Features))
		for f, name := range schema.Features {
			sample[name] = row[f]
		}
		diagnosis, err := eng.Diagnose(sample)
		if err != nil {
			continue
		}
		predicted := 0
		if diagnosis.Label == schema.PositiveLabel {
			predicted = 1
		}
		if predicted == testY[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(testX))
}

func clip(value, low, high float64) float64 {
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}
