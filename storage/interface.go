package storage

import (
	"context"
	"time"
)

// User is a registered marketplace participant.
type User struct {
	ID         int64
	TelegramID int64
	Name       string
	City       string
	Phone      string
	CreatedAt  time.Time
}

// Cargo is a shipment looking for a truck.
type Cargo struct {
	ID         int64
	UserID     int64
	RegionFrom string
	CityFrom   string
	RegionTo   string
	CityTo     string
	DateFrom   string // YYYY-MM-DD
	DateTo     string // YYYY-MM-DD
	Weight     int
	BodyType   string
	IsLocal    bool
	Comment    string
	CreatedAt  time.Time

	// Filled by search and admin listings.
	OwnerName  string
	OwnerPhone string
}

// Truck is a vehicle looking for a load.
type Truck struct {
	ID           int64
	UserID       int64
	Region       string
	City         string
	DateFrom     string
	DateTo       string
	Weight       int
	BodyType     string
	Direction    string
	RouteRegions string
	Comment      string
	CreatedAt    time.Time

	OwnerName  string
	OwnerPhone string
}

// CargoFilter constrains a cargo search. Empty fields are not applied.
type CargoFilter struct {
	CityFrom string
	CityTo   string
	DateFrom string
	DateTo   string
}

// TruckFilter constrains a truck search. Empty fields are not applied.
type TruckFilter struct {
	City     string
	DateFrom string
	DateTo   string
}

// UserField names a single editable profile column.
type UserField string

const (
	UserName  UserField = "name"
	UserCity  UserField = "city"
	UserPhone UserField = "phone"
)

// Stats is the aggregate snapshot shown to operators.
type Stats struct {
	TotalUsers int
	NewUsers   int
	Cargo      int
	Trucks     int
}

// Store is the persistence boundary of the bot.
//
// Lookups return (value, found, error): a missing row is not an error.
// Listing mutations are scoped to the owner and report whether a row matched.
type Store interface {
	UserByTelegramID(ctx context.Context, telegramID int64) (User, bool, error)
	// CreateUser inserts u unless its Telegram id is already registered.
	CreateUser(ctx context.Context, u User) (created bool, err error)
	UpdateUser(ctx context.Context, userID int64, field UserField, value string) (bool, error)
	// DeleteUser removes the user and every listing they own.
	DeleteUser(ctx context.Context, userID int64) (bool, error)

	CreateCargo(ctx context.Context, c Cargo) (int64, error)
	CargoByID(ctx context.Context, ownerID, id int64) (Cargo, bool, error)
	CargoByOwner(ctx context.Context, ownerID int64) ([]Cargo, error)
	UpdateCargoWeight(ctx context.Context, ownerID, id int64, weight int) (bool, error)
	UpdateCargoRoute(ctx context.Context, ownerID, id int64, regionFrom, cityFrom, regionTo, cityTo string) (bool, error)
	UpdateCargoDates(ctx context.Context, ownerID, id int64, from, to string) (bool, error)
	DeleteCargo(ctx context.Context, ownerID, id int64) (bool, error)

	CreateTruck(ctx context.Context, t Truck) (int64, error)
	TruckByID(ctx context.Context, ownerID, id int64) (Truck, bool, error)
	TrucksByOwner(ctx context.Context, ownerID int64) ([]Truck, error)
	UpdateTruckWeight(ctx context.Context, ownerID, id int64, weight int) (bool, error)
	UpdateTruckRoute(ctx context.Context, ownerID, id int64, region, city string) (bool, error)
	UpdateTruckDates(ctx context.Context, ownerID, id int64, from, to string) (bool, error)
	UpdateTruckRegions(ctx context.Context, ownerID, id int64, regions string) (bool, error)
	DeleteTruck(ctx context.Context, ownerID, id int64) (bool, error)

	// Search returns one page of matches, newest first, and the total count.
	SearchCargo(ctx context.Context, f CargoFilter, limit, offset int) ([]Cargo, int, error)
	SearchTrucks(ctx context.Context, f TruckFilter, limit, offset int) ([]Truck, int, error)

	// Distinct city projections, served from the projection cache.
	CargoOriginCities(ctx context.Context) ([]string, error)
	CargoDestinationCities(ctx context.Context) ([]string, error)
	TruckCities(ctx context.Context) ([]string, error)

	Stats(ctx context.Context, since time.Time) (Stats, error)
	LatestUsers(ctx context.Context, limit int) ([]User, error)
	LatestCargo(ctx context.Context, limit int) ([]Cargo, error)
	LatestTrucks(ctx context.Context, limit int) ([]Truck, error)
	TelegramIDs(ctx context.Context) ([]int64, error)

	Close() error
}
