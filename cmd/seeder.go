package cmd

import (
	"fmt"
	"log"

	"github.com/medshift/staffing-platform/internal/authz"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with sample data for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		sqlDB, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		db, err := initGormDB(sqlDB)
		if err != nil {
			log.Fatalf("failed to init orm: %v", err)
		}

		if clearData {
			for _, table := range []string{"audit_logs", "sessions", "user_permissions", "user_facilities", "users", "permissions", "facilities"} {
				if err := db.Exec("DELETE FROM " + table).Error; err != nil {
					log.Fatalf("failed to clear %s: %v", table, err)
				}
			}
			fmt.Println("Cleared existing data")
		}

		hash, _ := bcrypt.GenerateFromPassword([]byte("password"), cfg.Security.BCryptCost)

		for _, p := range authz.Catalog() {
			var exists int
			if err := db.Raw("SELECT 1 FROM permissions WHERE name = ?", p.Name).Row().Scan(&exists); err == nil {
				continue
			}
			if err := db.Exec("INSERT INTO permissions (name, category, created_at) VALUES (?, ?, now())", p.Name, p.Category).Error; err != nil {
				log.Fatalf("failed to insert permission %s: %v", p.Name, err)
			}
		}
		fmt.Println("Permission catalog seeded")

		facilities := []struct {
			Name     string
			Timezone string
		}{
			{"Riverside General Hospital", "America/Chicago"},
			{"Lakeview Rehabilitation Center", "America/New_York"},
		}

		facilityIDs := make(map[string]int64, len(facilities))
		for _, f := range facilities {
			var id int64
			if err := db.Raw("SELECT id FROM facilities WHERE name = ?", f.Name).Row().Scan(&id); err != nil {
				if err := db.Exec("INSERT INTO facilities (name, timezone, is_active, created_at, updated_at) VALUES (?, ?, true, now(), now())", f.Name, f.Timezone).Error; err != nil {
					log.Fatalf("failed to insert facility %s: %v", f.Name, err)
				}
				if err := db.Raw("SELECT id FROM facilities WHERE name = ?", f.Name).Row().Scan(&id); err != nil {
					log.Fatalf("facility not found after insert %s: %v", f.Name, err)
				}
				fmt.Println("Seeded facility:", f.Name)
			}
			facilityIDs[f.Name] = id
		}

		riverside := facilityIDs["Riverside General Hospital"]
		lakeview := facilityIDs["Lakeview Rehabilitation Center"]

		users := []struct {
			Email           string
			Name            string
			Role            string
			UserType        string
			PrimaryFacility *int64
		}{
			{"root@medshift.io", "Platform Admin", "super_admin", "system", nil},
			{"admin.riverside@medshift.io", "Riverside Admin", "facility_admin", "facility", &riverside},
			{"scheduler.riverside@medshift.io", "Riverside Scheduler", "facility_user", "facility", &riverside},
			{"nurse.jordan@medshift.io", "Jordan Reyes", "staff", "staff", &riverside},
			{"nurse.casey@medshift.io", "Casey Lim", "staff", "staff", &lakeview},
		}

		userIDs := make(map[string]int64, len(users))
		for _, u := range users {
			var id int64
			if err := db.Raw("SELECT id FROM users WHERE email = ?", u.Email).Row().Scan(&id); err != nil {
				if err := db.Exec(
					"INSERT INTO users (email, name, password_hash, role, user_type, primary_facility_id, is_active, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, true, now(), now())",
					u.Email, u.Name, string(hash), u.Role, u.UserType, u.PrimaryFacility,
				).Error; err != nil {
					log.Fatalf("failed to insert user %s: %v", u.Email, err)
				}
				if err := db.Raw("SELECT id FROM users WHERE email = ?", u.Email).Row().Scan(&id); err != nil {
					log.Fatalf("user not found after insert %s: %v", u.Email, err)
				}
				fmt.Println("Seeded user:", u.Email)
			}
			userIDs[u.Email] = id
		}

		// Riverside admin also covers Lakeview
		associateFacility(db, userIDs["admin.riverside@medshift.io"], lakeview)

		// the facility admin gets the impersonate permission as an explicit
		// grant, it is not part of the role defaults
		grantPermission(db, userIDs["admin.riverside@medshift.io"], authz.PermImpersonate, userIDs["root@medshift.io"])

		fmt.Println("Seeding completed")
	},
}

func associateFacility(db *gorm.DB, userID, facilityID int64) {
	var exists int
	if err := db.Raw("SELECT 1 FROM user_facilities WHERE user_id = ? AND facility_id = ?", userID, facilityID).Row().Scan(&exists); err == nil {
		return
	}
	if err := db.Exec("INSERT INTO user_facilities (user_id, facility_id, created_at) VALUES (?, ?, now())", userID, facilityID).Error; err != nil {
		log.Fatalf("failed to associate user %d with facility %d: %v", userID, facilityID, err)
	}
}

func grantPermission(db *gorm.DB, userID int64, permissionName string, grantedBy int64) {
	var exists int
	if err := db.Raw("SELECT 1 FROM user_permissions WHERE user_id = ? AND permission_name = ?", userID, permissionName).Row().Scan(&exists); err == nil {
		return
	}
	if err := db.Exec(
		"INSERT INTO user_permissions (user_id, permission_name, revoked, granted_by, created_at) VALUES (?, ?, false, ?, now())",
		userID, permissionName, grantedBy,
	).Error; err != nil {
		log.Fatalf("failed to grant %s to user %d: %v", permissionName, userID, err)
	}
}
