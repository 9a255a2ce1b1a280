// Package deck renders LIGGGHTS input decks for grinding mill runs.
package deck

import (
	_ "embed"
	"math"
	"strconv"
	"strings"
	"text/template"

	"github.com/xiaot623/millrun/internal/domain"
)

// DumpFileName is the trajectory dump the deck asks the solver to write,
// relative to the solver's working directory.
const DumpFileName = "charge_throw.dump"

// targetFrames bounds how many dump frames a run produces regardless of its length.
const targetFrames = 120

//go:embed in.grinding_mill.tmpl
var deckTemplate string

var tmpl = template.Must(template.New("deck").Funcs(template.FuncMap{
	"num": formatNumber,
}).Parse(deckTemplate))

// Derived holds the quantities computed from a MillConfig for the deck.
type Derived struct {
	Config domain.MillConfig

	Radius             float64
	Omega              float64 // rad/s
	Steps              int64
	DumpEvery          int64
	StepsPerRevolution int64
	CriticalRPM        float64
	DumpFile           string

	NegDiameter float64
	NegLength   float64
	ShellLow    float64
	ShellHigh   float64
	FillRadius  float64
	FillLow     float64
	FillHigh    float64
}

// Derive computes the deck quantities for cfg.
func Derive(cfg domain.MillConfig) Derived {
	radius := cfg.DiameterM / 2
	steps := cfg.TotalSteps()
	return Derived{
		Config:             cfg,
		Radius:             radius,
		Omega:              cfg.RPM * 2 * math.Pi / 60,
		Steps:              steps,
		DumpEvery:          max(1, steps/targetFrames),
		StepsPerRevolution: cfg.StepsPerRevolution(),
		CriticalRPM:        cfg.CriticalRPM(),
		DumpFile:           DumpFileName,
		NegDiameter:        -cfg.DiameterM,
		NegLength:          -cfg.LengthM,
		ShellLow:           -cfg.LengthM / 2,
		ShellHigh:          cfg.LengthM / 2,
		FillRadius:         radius * 0.85,
		FillLow:            -cfg.LengthM * 0.45,
		FillHigh:           cfg.LengthM * 0.45,
	}
}

// BuildInput renders the solver input deck for cfg. Identical configs
// always produce byte-identical text.
func BuildInput(cfg domain.MillConfig) string {
	var b strings.Builder
	// The template is parsed at init and only formats numbers, so Execute cannot fail
	// on a strings.Builder.
	if err := tmpl.Execute(&b, Derive(cfg)); err != nil {
		panic("deck: render template: " + err.Error())
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
