// Package policy holds the per-service tunables: how long each kind of appointment occupies the
// doctor and what it costs relative to the consultation fee.
package policy

import (
	"time"

	"docslot/pkg/config"
	"docslot/pkg/model"
)

type Policy struct {
	Durations         map[model.ServiceKind]time.Duration
	VoicePricePercent int
	ChatPricePercent  int
	VisitSurcharge    int64
}

func FromConfig(cfg *config.Config) Policy {
	return Policy{
		Durations: map[model.ServiceKind]time.Duration{
			model.ServiceConsultation: cfg.ConsultationDuration,
			model.ServiceVoice:        cfg.VoiceDuration,
			model.ServiceChat:         0,
			model.ServiceVisit:        cfg.VisitDuration,
		},
		VoicePricePercent: cfg.VoicePricePercent,
		ChatPricePercent:  cfg.ChatPricePercent,
		VisitSurcharge:    cfg.VisitSurcharge,
	}
}

func Default() Policy {
	return Policy{
		Durations: map[model.ServiceKind]time.Duration{
			model.ServiceConsultation: config.DefaultConsultationDuration,
			model.ServiceVoice:        config.DefaultVoiceDuration,
			model.ServiceChat:         0,
			model.ServiceVisit:        config.DefaultVisitDuration,
		},
		VoicePricePercent: config.DefaultVoicePricePercent,
		ChatPricePercent:  config.DefaultChatPricePercent,
		VisitSurcharge:    config.DefaultVisitSurcharge,
	}
}

// Minutes is the slot length of a service. Chat is always zero-width.
func (p Policy) Minutes(service model.ServiceKind) int {
	if service.ExemptFromConflicts() {
		return 0
	}
	return int(p.Durations[service] / time.Minute)
}

// Interval places a service of the given kind at start minutes of the day.
func (p Policy) Interval(service model.ServiceKind, start int) model.Interval {
	return model.NewInterval(start, start+p.Minutes(service))
}

// Price derives the price snapshot from the doctor's current consultation fee.
func (p Policy) Price(service model.ServiceKind, fee int64) int64 {
	switch service {
	case model.ServiceVoice:
		return fee * int64(p.VoicePricePercent) / 100
	case model.ServiceChat:
		return fee * int64(p.ChatPricePercent) / 100
	case model.ServiceVisit:
		return fee + p.VisitSurcharge
	default:
		return fee
	}
}
