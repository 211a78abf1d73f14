package storage

import (
	"fmt"
	"math"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// fallback when an hour has no recorded samples yet
	defaultHourlyKWh = 0.5
)

// HourlyConsumption is one learned sample, keyed by the hour it covers.
type HourlyConsumption struct {
	Timestamp      time.Time `gorm:"primaryKey"`
	Hour           int       `gorm:"index"`
	ConsumptionKWh float64   `gorm:"column:consumption_kwh"`
	Manual         bool
	CreatedAt      time.Time
}

// ConsumptionRepository learns the household's hourly consumption profile
// from recorded samples, keeping a rolling window of days.
type ConsumptionRepository struct {
	db           *gorm.DB
	learningDays int
	logger       *zap.Logger
}

func NewConsumptionRepository(path string, learningDays int, logger *zap.Logger) (*ConsumptionRepository, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Migrate the schema
	if err := db.AutoMigrate(&HourlyConsumption{}); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return &ConsumptionRepository{
		db:           db,
		learningDays: learningDays,
		logger:       logger,
	}, nil
}

// Record upserts the consumption of one hour. Re-recording the same hour
// replaces the earlier sample.
func (r *ConsumptionRepository) Record(timestamp time.Time, consumptionKWh float64) error {
	truncated := timestamp.Truncate(time.Hour)
	sample := HourlyConsumption{
		Timestamp:      truncated,
		Hour:           truncated.Hour(),
		ConsumptionKWh: consumptionKWh,
		Manual:         false,
		CreatedAt:      time.Now(),
	}
	result := r.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&sample)
	if result.Error != nil {
		return result.Error
	}
	return r.cleanup()
}

// SeedManualProfile backfills a full learning window from a manually
// supplied 24-hour baseline, so predictions work before real data exists.
func (r *ConsumptionRepository) SeedManualProfile(profile map[int]float64, now time.Time) error {
	day := now.Truncate(24 * time.Hour)
	for d := 0; d < r.learningDays; d++ {
		date := day.AddDate(0, 0, -d)
		for hour := 0; hour < 24; hour++ {
			kwh, ok := profile[hour]
			if !ok {
				r.logger.Warn("hour missing in manual profile", zap.Int("hour", hour))
				kwh = 0.2
			}
			sample := HourlyConsumption{
				Timestamp:      date.Add(time.Duration(hour) * time.Hour),
				Hour:           hour,
				ConsumptionKWh: kwh,
				Manual:         true,
				CreatedAt:      time.Now(),
			}
			if result := r.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&sample); result.Error != nil {
				return result.Error
			}
		}
	}
	return nil
}

// AverageForHour returns the average learned consumption of an hour of day.
func (r *ConsumptionRepository) AverageForHour(hour int) (float64, error) {
	var avg *float64
	result := r.db.Model(&HourlyConsumption{}).
		Select("AVG(consumption_kwh)").
		Where("hour = ?", hour).
		Scan(&avg)
	if result.Error != nil {
		return 0, result.Error
	}
	if avg == nil {
		r.logger.Debug("no samples for hour, using default", zap.Int("hour", hour))
		return defaultHourlyKWh, nil
	}
	return *avg, nil
}

// HourlyProfile returns the complete 24-hour average profile.
func (r *ConsumptionRepository) HourlyProfile() (map[int]float64, error) {
	type row struct {
		Hour int
		Avg  float64
	}
	var rows []row
	result := r.db.Model(&HourlyConsumption{}).
		Select("hour, AVG(consumption_kwh) as avg").
		Group("hour").
		Order("hour").
		Scan(&rows)
	if result.Error != nil {
		return nil, result.Error
	}

	profile := make(map[int]float64, 24)
	for hour := 0; hour < 24; hour++ {
		profile[hour] = defaultHourlyKWh
	}
	for _, r := range rows {
		profile[r.Hour] = r.Avg
	}
	return profile, nil
}

// PredictUntil estimates total consumption from now until the given hour of
// day, counting the remaining fraction of the current hour.
func (r *ConsumptionRepository) PredictUntil(now time.Time, targetHour int) (float64, error) {
	if targetHour < 0 || targetHour > 23 {
		return 0, fmt.Errorf("target hour out of range: %d", targetHour)
	}

	currentAvg, err := r.AverageForHour(now.Hour())
	if err != nil {
		return 0, err
	}
	remainingFraction := float64(60-now.Minute()) / 60
	total := currentAvg * remainingFraction

	for hour := (now.Hour() + 1) % 24; hour != targetHour; hour = (hour + 1) % 24 {
		avg, err := r.AverageForHour(hour)
		if err != nil {
			return 0, err
		}
		total += avg
	}
	return math.Round(total*1000) / 1000, nil
}

func (r *ConsumptionRepository) cleanup() error {
	cutoff := time.Now().AddDate(0, 0, -r.learningDays)
	result := r.db.Where("timestamp < ?", cutoff).Delete(&HourlyConsumption{})
	return result.Error
}
