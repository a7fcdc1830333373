package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/ivankomartin/deposit-console/internal/domain"
)

// ErrNothingToSeed is returned when the API has no company or no user to
// register products under.
var ErrNothingToSeed = errors.New("seed needs at least one company and one user")

// SeedOptions controls Seed.
type SeedOptions struct {
	Count       int
	Concurrency int
	// Seed makes the generated names and sizes reproducible.
	Seed uint64
}

var seedBrands = []string{
	"Kofola", "Rajec", "Vinea", "Bonaqua", "Mattoni", "Budiš",
	"Zlatý Bažant", "Šariš", "Pilsner Urquell", "Top Topic",
}

var seedFlavours = []string{
	"Original", "Citrus", "Malina", "Bez cukru", "Jemne perlivá",
	"Neperlivá", "Čerešňa", "Light", "Svetlé", "Tmavé",
}

var seedVolumes = map[domain.Packaging][]int64{
	domain.PackagingPET:   {500, 1000, 1500, 2000},
	domain.PackagingCan:   {250, 330, 500},
	domain.PackagingGlass: {330, 500, 750},
	domain.PackagingTetra: {200, 1000},
	domain.PackagingOther: {250, 500},
}

// seedDeposits are in cents.
var seedDeposits = map[domain.Packaging]int64{
	domain.PackagingPET:   15,
	domain.PackagingCan:   15,
	domain.PackagingGlass: 10,
	domain.PackagingTetra: 15,
	domain.PackagingOther: 15,
}

// GenerateProducts builds n valid products owned by companies and registered
// by users of the same company where one exists.
func GenerateProducts(n int, seed uint64, companies []domain.Company, users []domain.User) []domain.NewProduct {
	if len(companies) == 0 || len(users) == 0 {
		return nil
	}
	byCompany := make(map[int64][]domain.User)
	for _, u := range users {
		byCompany[u.CompanyID] = append(byCompany[u.CompanyID], u)
	}

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	packagings := domain.ValidPackagings()
	out := make([]domain.NewProduct, n)
	for i := range out {
		company := companies[rng.IntN(len(companies))]
		registrars := byCompany[company.ID]
		if len(registrars) == 0 {
			registrars = users
		}
		packaging := packagings[rng.IntN(len(packagings))]
		volumes := seedVolumes[packaging]
		volume := volumes[rng.IntN(len(volumes))]

		out[i] = domain.NewProduct{
			Name: fmt.Sprintf("%s %s %s",
				seedBrands[rng.IntN(len(seedBrands))],
				seedFlavours[rng.IntN(len(seedFlavours))],
				formatLitres(volume)),
			Packaging:      packaging,
			Deposit:        seedDeposits[packaging],
			Volume:         volume,
			CompanyID:      company.ID,
			RegisteredByID: registrars[rng.IntN(len(registrars))].ID,
		}
	}
	return out
}

func formatLitres(ml int64) string {
	if ml%1000 == 0 {
		return fmt.Sprintf("%dl", ml/1000)
	}
	return fmt.Sprintf("%gl", float64(ml)/1000)
}

// Seed registers opts.Count generated products through CreateProduct and
// returns how many were created before the first failure.
func (s *Catalog) Seed(ctx context.Context, opts SeedOptions) (int, error) {
	if opts.Count <= 0 {
		return 0, nil
	}
	companies, err := s.Companies(ctx)
	if err != nil {
		return 0, err
	}
	users, err := s.Users(ctx)
	if err != nil {
		return 0, err
	}
	products := GenerateProducts(opts.Count, opts.Seed, companies, users)
	if products == nil {
		return 0, ErrNothingToSeed
	}

	var created atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Concurrency, 1))
	for _, in := range products {
		g.Go(func() error {
			if _, err := s.CreateProduct(gctx, in); err != nil {
				return err
			}
			created.Add(1)
			return nil
		})
	}
	err = g.Wait()

	s.logger.InfoContext(ctx, "seeded products",
		slog.Int64("created", created.Load()),
		slog.Int("requested", opts.Count),
	)
	return int(created.Load()), err
}
