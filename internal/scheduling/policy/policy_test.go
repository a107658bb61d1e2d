package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"docslot/pkg/model"
)

func TestPolicy_Minutes(t *testing.T) {
	p := Default()

	assert.Equal(t, 30, p.Minutes(model.ServiceConsultation))
	assert.Equal(t, 20, p.Minutes(model.ServiceVoice))
	assert.Equal(t, 45, p.Minutes(model.ServiceVisit))
	assert.Equal(t, 0, p.Minutes(model.ServiceChat))

	assert.Equal(t, model.NewInterval(550, 570), p.Interval(model.ServiceVoice, 550))
	assert.True(t, p.Interval(model.ServiceChat, 540).IsZeroWidth())
}

func TestPolicy_Price(t *testing.T) {
	p := Default()

	tests := []struct {
		service model.ServiceKind
		fee     int64
		want    int64
	}{
		{model.ServiceConsultation, 1000, 1000},
		{model.ServiceVoice, 1000, 800},
		{model.ServiceChat, 1000, 600},
		{model.ServiceVisit, 1000, 1500},
		{model.ServiceVoice, 999, 799},
		{model.ServiceChat, 0, 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.service), func(t *testing.T) {
			assert.Equal(t, tt.want, p.Price(tt.service, tt.fee))
		})
	}
}
