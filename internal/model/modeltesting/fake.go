package modeltesting

import (
	"math/rand"
	"time"

	"github.com/go-faker/faker/v4"
	"github.com/google/uuid"

	"github.com/iliyamo/site-listing-marketplace/internal/model"
)

// FakeListing returns a pending model.Listing with fake data.  ops are
// applied in order after the defaults.
func FakeListing(ops ...func(l *model.Listing)) model.Listing {
	now := time.Now().UTC().Truncate(time.Millisecond)
	listing := model.Listing{
		ID:          uuid.NewString(),
		UserID:      "user_" + faker.Username(),
		Title:       faker.Sentence(),
		URL:         faker.DomainName(),
		Description: faker.Paragraph(),
		Price:       rand.Int63n(100000),
		Categories:  model.NewStringSet(faker.Word(), faker.Word()),
		Tags:        model.NewStringSet(faker.Word()),
		Countries:   model.NewStringSet("US", "DE"),
		Metrics: model.Metrics{
			DomainAuthority:  rand.Intn(100),
			DomainRating:     rand.Intn(100),
			SpamScore:        rand.Intn(10),
			OrganicTraffic:   rand.Int63n(1000000),
			ReferringDomains: rand.Int63n(5000),
		},
		Status:    model.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	for _, op := range ops {
		op(&listing)
	}

	return listing
}
