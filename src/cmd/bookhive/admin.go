package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
	"gorm.io/gorm"

	"github.com/bookhive/bookhive/src/internal/auth"
	"github.com/bookhive/bookhive/src/internal/cache"
	"github.com/bookhive/bookhive/src/internal/database"
	"github.com/bookhive/bookhive/src/internal/database/models"
	"github.com/bookhive/bookhive/src/internal/email"
	"github.com/bookhive/bookhive/src/internal/services"
)

func seedCmd() *cobra.Command {
	var adminEmail, adminName, adminPassword string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the sample catalog and create an admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()

			if err := database.MigrateDB(a.db); err != nil {
				return err
			}

			created := 0
			for _, b := range sampleCatalog() {
				book := b
				res := a.db.Where("isbn = ?", book.ISBN).FirstOrCreate(&book)
				if res.Error != nil {
					return fmt.Errorf("failed to seed %q: %w", book.Title, res.Error)
				}
				created += int(res.RowsAffected)
			}
			fmt.Printf("Catalog seeded: %d new book(s), %d already present\n", created, len(sampleCatalog())-created)

			var existing models.User
			err = a.db.Where("email = ?", adminEmail).First(&existing).Error
			if err == nil {
				fmt.Printf("Admin account %s already exists, skipping\n", adminEmail)
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}

			if adminPassword == "" {
				adminPassword, err = promptPassword()
				if err != nil {
					return err
				}
			}
			user, err := createAccount(a.db, adminEmail, adminName, adminPassword, models.RoleAdmin)
			if err != nil {
				return err
			}
			fmt.Printf("Admin account %s created (id %d)\n", user.Email, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&adminEmail, "admin-email", "admin@bookhive.local", "email for the seeded admin account")
	cmd.Flags().StringVar(&adminName, "admin-name", "Administrator", "display name for the seeded admin account")
	cmd.Flags().StringVar(&adminPassword, "admin-password", "", "password for the seeded admin account (prompted when omitted)")
	return cmd
}

func adminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage administrator accounts",
	}
	cmd.AddCommand(adminCreateCmd())
	return cmd
}

func adminCreateCmd() *cobra.Command {
	var accountEmail, name, password string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()

			if password == "" {
				password, err = promptPassword()
				if err != nil {
					return err
				}
			}
			user, err := createAccount(a.db, accountEmail, name, password, models.RoleAdmin)
			if err != nil {
				return err
			}
			fmt.Printf("Admin account %s created (id %d)\n", user.Email, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&accountEmail, "email", "", "account email")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&password, "password", "", "password (prompted when omitted)")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("name")
	return cmd
}

func notifyOverdueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "notify-overdue",
		Short: "Queue overdue-loan reminder emails and deliver them",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()

			manager := cache.NewManager(a.cfg, a.logger)
			defer manager.Close()
			recs := cache.NewRecommendationCache(manager, a.cfg.GetDuration("ai.recommend_cache_ttl"))
			borrowings := services.NewBorrowingService(a.db, a.cfg, recs, a.logger)
			notices := email.NewNoticeService(a.db, email.NewMailer(a.cfg), a.logger)

			ctx := cmd.Context()
			loans, err := borrowings.OverdueLoans(ctx)
			if err != nil {
				return err
			}

			queued := 0
			for i := range loans {
				if err := notices.QueueOverdueReminder(ctx, &loans[i]); err != nil {
					a.logger.Warn("failed to queue overdue reminder",
						zap.Int64("borrowing_id", loans[i].ID), zap.Error(err))
					continue
				}
				queued++
			}

			sent, err := notices.ProcessPending(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("%d overdue loan(s), %d reminder(s) queued, %d notice(s) delivered\n",
				len(loans), queued, sent)
			return nil
		},
	}
}

// createAccount enforces the same password policy as the register endpoint.
func createAccount(db *gorm.DB, accountEmail, name, password, roleName string) (*models.User, error) {
	if err := auth.ValidatePassword(password); err != nil {
		return nil, err
	}
	var role models.Role
	if err := db.Where("name = ?", roleName).First(&role).Error; err != nil {
		return nil, fmt.Errorf("role %s not found, run migrations first: %w", roleName, err)
	}
	hashed, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Email:          accountEmail,
		Name:           name,
		HashedPassword: hashed,
		RoleID:         role.ID,
		IsActive:       true,
	}
	if err := db.Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return user, nil
}

// promptPassword reads the password twice from the terminal without echo.
func promptPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("stdin is not a terminal, pass the password flag instead")
	}
	fmt.Fprint(os.Stderr, "Password: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	fmt.Fprint(os.Stderr, "Confirm password: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	return string(first), nil
}

func sampleCatalog() []models.Book {
	date := func(value string) time.Time {
		t, _ := time.Parse("2006-01-02", value)
		return t
	}
	return []models.Book{
		{Title: "The Hobbit", Author: "J.R.R. Tolkien", ISBN: "9780547928227", Genre: "Fantasy",
			PublishedDate: date("1937-09-21"),
			Description:   "Bilbo Baggins is swept into a quest to reclaim the dwarves' mountain home from the dragon Smaug."},
		{Title: "1984", Author: "George Orwell", ISBN: "9780451524935", Genre: "Dystopian",
			PublishedDate: date("1949-06-08"),
			Description:   "Winston Smith rewrites history for the Ministry of Truth while dreaming of rebellion against Big Brother."},
		{Title: "Pride and Prejudice", Author: "Jane Austen", ISBN: "9780141439518", Genre: "Romance",
			PublishedDate: date("1813-01-28"),
			Description:   "Elizabeth Bennet navigates manners, marriage and misjudgment in Regency England."},
		{Title: "Dune", Author: "Frank Herbert", ISBN: "9780441172719", Genre: "Science Fiction",
			PublishedDate: date("1965-08-01"),
			Description:   "Paul Atreides inherits the desert planet Arrakis and the spice that shapes an empire."},
		{Title: "The Great Gatsby", Author: "F. Scott Fitzgerald", ISBN: "9780743273565", Genre: "Classic",
			PublishedDate: date("1925-04-10"),
			Description:   "Jay Gatsby throws lavish parties across the bay from the woman he cannot stop loving."},
		{Title: "To Kill a Mockingbird", Author: "Harper Lee", ISBN: "9780061120084", Genre: "Classic",
			PublishedDate: date("1960-07-11"),
			Description:   "Scout Finch watches her father defend an innocent man in a town poisoned by prejudice."},
		{Title: "Brave New World", Author: "Aldous Huxley", ISBN: "9780060850524", Genre: "Dystopian",
			PublishedDate: date("1932-01-01"),
			Description:   "A bioengineered caste society keeps its citizens docile with pleasure and conditioning."},
		{Title: "The Name of the Wind", Author: "Patrick Rothfuss", ISBN: "9780756404741", Genre: "Fantasy",
			PublishedDate: date("2007-03-27"),
			Description:   "Kvothe recounts how an orphaned trouper talked his way into the University and into legend."},
	}
}
