package odfcrypt

import "fmt"

// Stage names the pipeline step a trial stopped at.
type Stage int

const (
	// StageUnset is the zero value; no trial ever reports it.
	StageUnset Stage = iota
	StageKDF
	StageCipher
	StageUnpad
	StageInflate
	StageXMLValidate
	// StageDone marks a trial that passed every check.
	StageDone
)

// Stages lists every rejecting stage in pipeline order.
var Stages = [...]Stage{StageKDF, StageCipher, StageUnpad, StageInflate, StageXMLValidate}

func (s Stage) String() string {
	switch s {
	case StageUnset:
		return "unset"
	case StageKDF:
		return "kdf"
	case StageCipher:
		return "cipher"
	case StageUnpad:
		return "unpad"
	case StageInflate:
		return "inflate"
	case StageXMLValidate:
		return "xml"
	case StageDone:
		return "done"
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// Result is the outcome of one (candidate, mode) trial. Plaintext is set
// only when Stage is StageDone; a zero Result is never OK.
type Result struct {
	Plaintext []byte
	Stage     Stage
	Err       error
}

func (r Result) OK() bool {
	return r.Stage == StageDone
}

func reject(stage Stage, err error) Result {
	return Result{Stage: stage, Err: err}
}

// Pipeline runs derive -> decrypt -> unpad -> inflate -> validate for one
// encrypted entry. Params and ciphertext are only read; each worker needs
// its own Pipeline because the inflater is reused between trials.
type Pipeline struct {
	params     *Params
	ciphertext []byte
	size       int64
	inflater   *Inflater
}

// NewPipeline builds a pipeline. size is the expected plaintext length,
// or 0 when unknown.
func NewPipeline(params *Params, ciphertext []byte, size int64) *Pipeline {
	return &Pipeline{
		params:     params,
		ciphertext: ciphertext,
		size:       size,
		inflater:   NewInflater(),
	}
}

func (pl *Pipeline) Try(password []byte, mode Mode) Result {
	key, err := DeriveKey(password, mode, pl.params)
	if err != nil {
		return reject(StageKDF, err)
	}
	padded, err := DecryptCBC(key, pl.params.IV, pl.ciphertext)
	zeroBytes(key)
	if err != nil {
		return reject(StageCipher, err)
	}
	compressed, err := Unpad(padded)
	if err != nil {
		return reject(StageUnpad, err)
	}
	plain, err := pl.inflater.Inflate(compressed, pl.size)
	if err != nil {
		return reject(StageInflate, err)
	}
	if !WellFormed(plain) {
		return reject(StageXMLValidate, ErrXMLValidation)
	}
	return Result{Plaintext: plain, Stage: StageDone}
}

// Decrypt tries every mode in order and returns the first success, or the
// last rejection.
func (pl *Pipeline) Decrypt(password []byte) (Mode, Result) {
	var res Result
	for _, mode := range Modes {
		res = pl.Try(password, mode)
		if res.OK() || res.Stage == StageKDF {
			return mode, res
		}
	}
	return Raw, res
}
