package models

// Domain models matching the database schema in db/migrations/0001_init.sql

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

type User struct {
	ID           string `json:"id" db:"id"`
	Username     string `json:"username" db:"username"`
	Email        string `json:"email" db:"email"`
	PasswordHash string `json:"-" db:"password_hash"`
	FullName     string `json:"full_name" db:"full_name"`
	Role         string `json:"role" db:"role"`
	Created      int64  `json:"created" db:"created"`
	Updated      int64  `json:"updated" db:"updated"`
}

// Batch is a named group of specimens ("lote"). Date is a calendar day in
// YYYY-MM-DD form.
type Batch struct {
	ID          string `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	Date        string `json:"date" db:"date"`
	Description string `json:"description" db:"description"`
	CreatedBy   string `json:"created_by,omitempty" db:"created_by"`
	Created     int64  `json:"created" db:"created"`
	Updated     int64  `json:"updated" db:"updated"`

	// SpecimenCount is computed on list queries.
	SpecimenCount int64 `json:"specimen_count"`
}

// BatchDetail is a batch together with its specimens ordered by orden.
type BatchDetail struct {
	Batch
	Specimens []Specimen `json:"specimens"`
}

// Specimen is a single test sample ("probeta"). (BatchID, Orden) is unique.
type Specimen struct {
	ID                string   `json:"id" db:"id"`
	BatchID           string   `json:"batch_id" db:"batch_id"`
	Orden             string   `json:"orden" db:"orden"`
	Fecha             string   `json:"fecha" db:"fecha"`
	Orientacion       string   `json:"orientacion" db:"orientacion"`
	Descripcion       string   `json:"descripcion" db:"descripcion"`
	Ensayo            string   `json:"ensayo" db:"ensayo"`
	TipoFibra         string   `json:"tipo_fibra" db:"tipo_fibra"`
	FuerzaMaxima      *float64 `json:"fuerza_maxima" db:"fuerza_maxima"`
	ModuloElasticidad *float64 `json:"modulo_elasticidad" db:"modulo_elasticidad"`
	TipoResina        string   `json:"tipo_resina" db:"tipo_resina"`
	CuradoTempHum     string   `json:"curado_temp_hum" db:"curado_temp_hum"`
	CreatedBy         string   `json:"created_by,omitempty" db:"created_by"`
	Created           int64    `json:"created" db:"created"`
	Updated           int64    `json:"updated" db:"updated"`

	// Joined from the owning batch on read paths.
	BatchName        string `json:"batch_name,omitempty"`
	BatchDescription string `json:"batch_description,omitempty"`
}

type Activity struct {
	ID       int64  `json:"id" db:"id"`
	UserID   string `json:"user_id,omitempty" db:"user_id"`
	Action   string `json:"action" db:"action"`
	Details  string `json:"details,omitempty" db:"details"`
	Created  int64  `json:"created" db:"created"`
	Username string `json:"username,omitempty"`
	FullName string `json:"full_name,omitempty"`
}

// SpecimenFilter narrows specimen listings. Zero values mean "no filter".
type SpecimenFilter struct {
	BatchID   string
	Ensayo    string
	TipoFibra string
	Search    string
	StartDate string
	EndDate   string
	SortBy    string
	SortDesc  bool
	Limit     int
	Offset    int
}

// Dashboard aggregates.

type GeneralStats struct {
	TotalSpecimens int64 `json:"totalSpecimens"`
	TotalBatches   int64 `json:"totalBatches"`
	RecentTests    int64 `json:"recentTests"`
	TotalUsers     int64 `json:"totalUsers"`
}

type EnsayoStat struct {
	Ensayo               string   `json:"ensayo"`
	Count                int64    `json:"count"`
	AvgFuerzaMaxima      *float64 `json:"avg_fuerza_maxima"`
	AvgModuloElasticidad *float64 `json:"avg_modulo_elasticidad"`
}

type FibraStat struct {
	TipoFibra string `json:"tipo_fibra"`
	Count     int64  `json:"count"`
}

type DashboardStats struct {
	General         GeneralStats `json:"general"`
	Ensayos         []EnsayoStat `json:"ensayos"`
	Fibras          []FibraStat  `json:"fibras"`
	RecentSpecimens []Specimen   `json:"recentSpecimens"`
	RecentBatches   []Batch      `json:"recentBatches"`
}

type MonthCount struct {
	Month string `json:"month"`
	Count int64  `json:"count"`
}

type RangeStat struct {
	Ensayo string  `json:"ensayo"`
	Avg    float64 `json:"avg"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

type DashboardCharts struct {
	SpecimensByMonth []MonthCount `json:"specimensByMonth"`
	BatchesByMonth   []MonthCount `json:"batchesByMonth"`
	FuerzaByEnsayo   []RangeStat  `json:"fuerzaByEnsayo"`
	ModuloByEnsayo   []RangeStat  `json:"moduloByEnsayo"`
}

type ReportStats struct {
	TotalSpecimens       int64    `json:"total_specimens"`
	TotalBatches         int64    `json:"total_batches"`
	UniqueEnsayos        int64    `json:"unique_ensayos"`
	AvgFuerzaMaxima      *float64 `json:"avg_fuerza_maxima"`
	AvgModuloElasticidad *float64 `json:"avg_modulo_elasticidad"`
}
