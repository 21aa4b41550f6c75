package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/medclinic/clinic/internal/config"
	"github.com/medclinic/clinic/internal/domain/catalog"
	"github.com/medclinic/clinic/internal/domain/user"
	"github.com/medclinic/clinic/internal/platform/apperr"
	"github.com/medclinic/clinic/internal/platform/auth"
	"github.com/medclinic/clinic/internal/platform/cache"
	"github.com/medclinic/clinic/internal/platform/db"
)

// seedCaller acts with admin rights on behalf of the seed command.
var seedCaller = auth.Caller{Role: auth.RoleAdmin}

type seedService struct {
	Name        string
	Description string
	Price       float64
	Duration    int
	Category    string
}

var defaultServices = []seedService{
	{"General practitioner consultation", "Initial visit with history taking, blood pressure measurement and a general examination.", 2000, 30, "Therapy"},
	{"Cardiologist consultation", "Consultation with an ECG and its interpretation, with recommendations on cardiovascular health.", 2500, 45, "Cardiology"},
	{"Echocardiography", "Ultrasound examination of the heart to assess its structure and function.", 3500, 60, "Cardiology"},
	{"Neurologist consultation", "Diagnosis of nervous system disorders including a neurological status assessment.", 2300, 40, "Neurology"},
	{"Caries treatment", "Removal of affected tissue and a light-cured filling.", 4500, 60, "Dentistry"},
	{"Professional teeth cleaning", "Ultrasonic scaling and polishing to remove tartar and plaque.", 5000, 60, "Dentistry"},
	{"Complete blood count", "Blood panel covering hemoglobin, red and white cell counts, with interpretation.", 900, 15, "Laboratory"},
	{"Brain MRI", "Magnetic resonance imaging of the brain.", 7500, 45, "Diagnostics"},
}

var defaultAccounts = []user.CreateRequest{
	{
		RegisterRequest: user.RegisterRequest{
			Email: "admin@medclinic.ru", Password: "Admin123",
			FirstName: "System", LastName: "Administrator", PhoneNumber: "+79001234567",
		},
		Role: auth.RoleAdmin,
	},
	{
		RegisterRequest: user.RegisterRequest{
			Email: "doctor@medclinic.ru", Password: "Doctor123",
			FirstName: "Ivan", LastName: "Petrov", PhoneNumber: "+79001234568",
		},
		Role:            auth.RoleDoctor,
		DoctorSpecialty: "Therapy",
	},
	{
		RegisterRequest: user.RegisterRequest{
			Email: "patient@medclinic.ru", Password: "Patient123",
			FirstName: "Anna", LastName: "Sidorova", PhoneNumber: "+79001234569",
			DateOfBirth: "1990-05-15",
		},
		Role: auth.RolePatient,
	},
}

func (s seedService) input() catalog.Input {
	name, desc, cat := s.Name, s.Description, s.Category
	price, dur := s.Price, s.Duration
	return catalog.Input{
		Name:            &name,
		Description:     &desc,
		Price:           &price,
		DurationMinutes: &dur,
		Category:        &cat,
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the default catalog and demo accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := newLogger(cfg.Env)

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			catalogSvc := catalog.NewService(catalog.NewRepoPG(pool), cache.Nop{}, 0, nil, logger)
			userSvc := user.NewService(user.NewRepoPG(pool), nil, nil)

			created, err := seed(ctx, catalogSvc, userSvc, logger)
			if err != nil {
				return err
			}
			fmt.Printf("Seed complete: %d record(s) created.\n", created)
			return nil
		},
	}
}

type catalogCreator interface {
	Create(ctx context.Context, caller auth.Caller, in catalog.Input) (*catalog.MedicalService, error)
}

type userCreator interface {
	CreateUser(ctx context.Context, caller auth.Caller, req user.CreateRequest) (*user.User, error)
}

// seed creates whatever default rows are missing. Rows that already exist
// surface as conflicts and are skipped, so reruns are harmless.
func seed(ctx context.Context, services catalogCreator, users userCreator, logger zerolog.Logger) (int, error) {
	created := 0
	for _, s := range defaultServices {
		_, err := services.Create(ctx, seedCaller, s.input())
		switch {
		case err == nil:
			created++
			logger.Info().Str("service", s.Name).Msg("seeded service")
		case apperr.KindOf(err) == apperr.KindConflict:
			logger.Debug().Str("service", s.Name).Msg("service already exists")
		default:
			return created, fmt.Errorf("seed service %q: %w", s.Name, err)
		}
	}

	for _, acct := range defaultAccounts {
		_, err := users.CreateUser(ctx, seedCaller, acct)
		switch {
		case err == nil:
			created++
			logger.Info().Str("email", acct.Email).Str("role", string(acct.Role)).Msg("seeded account")
		case apperr.KindOf(err) == apperr.KindConflict:
			logger.Debug().Str("email", acct.Email).Msg("account already exists")
		default:
			return created, fmt.Errorf("seed account %s: %w", acct.Email, err)
		}
	}
	return created, nil
}
