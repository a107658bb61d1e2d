package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"docslot/pkg/model"
)

type fixtureFile struct {
	Doctors []doctorFixture `toml:"doctors"`
}

type ruleFixture struct {
	Weekday string `toml:"weekday"`
	Date    string `toml:"date"`
	Start   string `toml:"start"`
	End     string `toml:"end"`
}

type doctorFixture struct {
	Name               string        `toml:"name"`
	Email              string        `toml:"email"`
	Phone              string        `toml:"phone"`
	Specialty          string        `toml:"specialty"`
	Hospital           string        `toml:"hospital"`
	Location           string        `toml:"location"`
	ConsultationFee    int64         `toml:"consultation_fee"`
	Available          *bool         `toml:"available"`
	EmergencyAvailable bool          `toml:"emergency_available"`
	AvailabilityText   string        `toml:"availability_text"`
	Availability       []ruleFixture `toml:"availability"`
	SlotGranularityMin int           `toml:"slot_granularity_min"`
	TimeZone           string        `toml:"time_zone"`
}

// loadFixture decodes path and rejects unknown keys, which are almost always typos.
func loadFixture(path string) ([]*model.Doctor, error) {
	var f fixtureFile
	md, err := toml.DecodeFile(path, &f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}
	if len(f.Doctors) == 0 {
		return nil, fmt.Errorf("%s defines no doctors", path)
	}

	doctors := make([]*model.Doctor, 0, len(f.Doctors))
	for _, d := range f.Doctors {
		doctors = append(doctors, d.toModel())
	}
	return doctors, nil
}

func (d doctorFixture) toModel() *model.Doctor {
	doctor := &model.Doctor{
		Name:                 d.Name,
		Email:                d.Email,
		Phone:                d.Phone,
		Specialty:            d.Specialty,
		Hospital:             d.Hospital,
		Location:             d.Location,
		ConsultationFee:      d.ConsultationFee,
		IsActive:             true,
		IsAvailable:          d.Available == nil || *d.Available,
		IsEmergencyAvailable: d.EmergencyAvailable,
		AvailabilityText:     d.AvailabilityText,
		SlotGranularityMin:   d.SlotGranularityMin,
		TimeZone:             d.TimeZone,
	}
	for _, r := range d.Availability {
		doctor.Availability = append(doctor.Availability, model.AvailabilityRule{
			Weekday: model.Weekday(r.Weekday),
			Date:    r.Date,
			Start:   r.Start,
			End:     r.End,
		})
	}
	return doctor
}
