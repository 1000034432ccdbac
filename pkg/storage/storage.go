// Package storage emulates the ECU's persistent calibration storage. Save
// and reset requests are queued and complete one at a time after a fixed
// number of ticks, the way an EEPROM write is spread over many scheduler
// ticks. While a request is pending the learning engine stays suspended.
package storage

import (
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/tosih/secu3-ltft/pkg/config"
	"github.com/tosih/secu3-ltft/pkg/editor"
	"github.com/tosih/secu3-ltft/pkg/ltft"
	"github.com/tosih/secu3-ltft/pkg/models"
)

// DefaultLatency is the number of ticks an operation stays pending.
const DefaultLatency = 50

// Config wires an EEPROM to the tables it persists.
type Config struct {
	// Image is the calibration image file written on save. Empty keeps
	// everything in memory.
	Image   string
	Trim    [ltft.Channels]*models.TrimTable
	Params  *config.Calibration
	Latency int
	Logger  *zap.Logger
}

// EEPROM is a persistent storage emulator. Request methods may be called
// from any goroutine; Tick must run on the goroutine that calls
// Engine.Control, since completing a reset rewrites the trim tables.
type EEPROM struct {
	mu      sync.Mutex
	queue   []ltft.Opcode
	elapsed int

	image   string
	trim    [ltft.Channels]*models.TrimTable
	params  *config.Calibration
	latency int
	log     *zap.Logger
	saves   int
}

// New returns an idle EEPROM.
func New(cfg Config) *EEPROM {
	s := &EEPROM{
		image:   cfg.Image,
		trim:    cfg.Trim,
		params:  cfg.Params,
		latency: cfg.Latency,
		log:     cfg.Logger,
	}
	if s.latency <= 0 {
		s.latency = DefaultLatency
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

// RequestSave queues a write of the trim tables.
func (s *EEPROM) RequestSave() { s.request(ltft.OpcodeSaveLTFT) }

// RequestReset queues clearing of the trim tables.
func (s *EEPROM) RequestReset() { s.request(ltft.OpcodeResetLTFT) }

// RequestSaveParams queues a write of the scalar parameters.
func (s *EEPROM) RequestSaveParams() { s.request(ltft.OpcodeSaveParams) }

func (s *EEPROM) request(op ltft.Opcode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range s.queue {
		if q == op {
			return
		}
	}
	s.queue = append(s.queue, op)
	s.log.Debug("storage request queued", zap.Stringer("opcode", op), zap.Int("depth", len(s.queue)))
}

// PendingOpcode implements ltft.Storage.
func (s *EEPROM) PendingOpcode() ltft.Opcode {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return ltft.OpcodeNone
	}
	return s.queue[0]
}

// Saves returns the number of completed trim table saves.
func (s *EEPROM) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// Tick advances the pending operation. It returns the opcode completed on
// this tick, or OpcodeNone.
func (s *EEPROM) Tick() (ltft.Opcode, error) {
	s.mu.Lock()
	if len(s.queue) == 0 {
		s.mu.Unlock()
		return ltft.OpcodeNone, nil
	}
	s.elapsed++
	if s.elapsed < s.latency {
		s.mu.Unlock()
		return ltft.OpcodeNone, nil
	}
	op := s.queue[0]
	s.mu.Unlock()

	err := s.complete(op)

	s.mu.Lock()
	s.queue = s.queue[1:]
	s.elapsed = 0
	if err == nil && op == ltft.OpcodeSaveLTFT {
		s.saves++
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Error("storage operation failed", zap.Stringer("opcode", op), zap.Error(err))
		return op, err
	}
	s.log.Info("storage operation completed", zap.Stringer("opcode", op))
	return op, nil
}

func (s *EEPROM) complete(op ltft.Opcode) error {
	switch op {
	case ltft.OpcodeResetLTFT:
		for _, t := range s.trim {
			if t != nil {
				t.Reset()
			}
		}
		return s.writeTrims()
	case ltft.OpcodeSaveLTFT:
		return s.writeTrims()
	case ltft.OpcodeSaveParams:
		return s.writeParams()
	}
	return nil
}

func (s *EEPROM) writeTrims() error {
	if s.image == "" {
		return nil
	}
	return errors.Wrap(editor.WriteTrims(s.image, s.trim), "save trim tables")
}

func (s *EEPROM) writeParams() error {
	if s.image == "" || s.params == nil {
		return nil
	}
	values := s.params.ImageParams()
	for _, p := range models.ConfigParams {
		v, ok := values[p.Name]
		if !ok {
			continue
		}
		if err := editor.WriteConfigParam(s.image, p, v); err != nil {
			return errors.Wrapf(err, "save parameter %s", p.Name)
		}
	}
	return nil
}
