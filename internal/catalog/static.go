package catalog

import "context"

// StaticDirectory serves the seeded reference catalog. All reads are pure;
// IsWorkerAvailable always answers true here, the real marketplace directory
// answers from worker presence data.
type StaticDirectory struct {
	categories []ServiceCategory
	workers    map[string][]Worker // sub-service id -> ranked candidates
}

func NewStaticDirectory() *StaticDirectory {
	return &StaticDirectory{
		categories: seedCategories,
		workers:    seedWorkers,
	}
}

func (d *StaticDirectory) ListCategories(ctx context.Context) ([]ServiceCategory, error) {
	out := make([]ServiceCategory, len(d.categories))
	copy(out, d.categories)
	return out, nil
}

func (d *StaticDirectory) GetCategory(ctx context.Context, categoryID string) (*ServiceCategory, error) {
	for _, c := range d.categories {
		if c.ID == categoryID {
			cat := c
			return &cat, nil
		}
	}
	return nil, ErrNotFound
}

func (d *StaticDirectory) ListSubServices(ctx context.Context, categoryID string) ([]SubService, error) {
	cat, err := d.GetCategory(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	out := make([]SubService, len(cat.SubServices))
	copy(out, cat.SubServices)
	return out, nil
}

func (d *StaticDirectory) ListWorkers(ctx context.Context, subServiceID string) ([]Worker, error) {
	ws, ok := d.workers[subServiceID]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]Worker, len(ws))
	copy(out, ws)
	return out, nil
}

func (d *StaticDirectory) IsWorkerAvailable(ctx context.Context, workerID string) (bool, error) {
	for _, ws := range d.workers {
		for _, w := range ws {
			if w.ID == workerID {
				return true, nil
			}
		}
	}
	return false, ErrNotFound
}

var seedCategories = []ServiceCategory{
	{
		ID:   "plumber",
		Name: "Plumber",
		SubServices: []SubService{
			{ID: "tap-repair", Name: "Tap Repair", BasePrice: 150},
			{ID: "pipe-leakage", Name: "Pipe Leakage Fix", BasePrice: 250},
			{ID: "drain-cleaning", Name: "Drain Cleaning", BasePrice: 300},
			{ID: "bathroom-fitting", Name: "Bathroom Fitting", BasePrice: 500},
		},
	},
	{
		ID:   "electrician",
		Name: "Electrician",
		SubServices: []SubService{
			{ID: "fan-installation", Name: "Fan Installation", BasePrice: 200},
			{ID: "wiring-repair", Name: "Wiring Repair", BasePrice: 350},
			{ID: "switchboard-fix", Name: "Switchboard Fix", BasePrice: 180},
		},
	},
	{
		ID:   "cleaner",
		Name: "Home Cleaning",
		SubServices: []SubService{
			{ID: "deep-cleaning", Name: "Deep Cleaning", BasePrice: 1200},
			{ID: "sofa-cleaning", Name: "Sofa Cleaning", BasePrice: 600},
			{ID: "kitchen-cleaning", Name: "Kitchen Cleaning", BasePrice: 800},
		},
	},
	{
		ID:   "carpenter",
		Name: "Carpenter",
		SubServices: []SubService{
			{ID: "furniture-repair", Name: "Furniture Repair", BasePrice: 400},
			{ID: "door-fitting", Name: "Door Fitting", BasePrice: 550},
		},
	},
}

var seedWorkers = map[string][]Worker{
	"tap-repair": {
		{ID: "w-ramesh", Name: "Ramesh Kumar", Rating: 4.8, Price: 300, DistanceKm: 1.2, Verified: true, ResponseTime: "10 min", JobsDone: 342},
		{ID: "w-suresh", Name: "Suresh Yadav", Rating: 4.5, Price: 250, DistanceKm: 2.5, Verified: true, ResponseTime: "15 min", JobsDone: 198},
		{ID: "w-mahesh", Name: "Mahesh Singh", Rating: 4.1, Price: 200, DistanceKm: 3.8, Verified: false, ResponseTime: "25 min", JobsDone: 87},
	},
	"pipe-leakage": {
		{ID: "w-ramesh", Name: "Ramesh Kumar", Rating: 4.8, Price: 400, DistanceKm: 1.2, Verified: true, ResponseTime: "10 min", JobsDone: 342},
		{ID: "w-dinesh", Name: "Dinesh Gupta", Rating: 4.3, Price: 350, DistanceKm: 4.1, Verified: true, ResponseTime: "20 min", JobsDone: 156},
	},
	"drain-cleaning": {
		{ID: "w-suresh", Name: "Suresh Yadav", Rating: 4.5, Price: 450, DistanceKm: 2.5, Verified: true, ResponseTime: "15 min", JobsDone: 198},
	},
	"bathroom-fitting": {
		{ID: "w-dinesh", Name: "Dinesh Gupta", Rating: 4.3, Price: 700, DistanceKm: 4.1, Verified: true, ResponseTime: "20 min", JobsDone: 156},
	},
	"fan-installation": {
		{ID: "w-akash", Name: "Akash Verma", Rating: 4.7, Price: 280, DistanceKm: 0.8, Verified: true, ResponseTime: "8 min", JobsDone: 267},
		{ID: "w-vijay", Name: "Vijay Sharma", Rating: 4.2, Price: 230, DistanceKm: 3.2, Verified: false, ResponseTime: "18 min", JobsDone: 104},
	},
	"wiring-repair": {
		{ID: "w-akash", Name: "Akash Verma", Rating: 4.7, Price: 500, DistanceKm: 0.8, Verified: true, ResponseTime: "8 min", JobsDone: 267},
	},
	"switchboard-fix": {
		{ID: "w-vijay", Name: "Vijay Sharma", Rating: 4.2, Price: 260, DistanceKm: 3.2, Verified: false, ResponseTime: "18 min", JobsDone: 104},
	},
	"deep-cleaning": {
		{ID: "w-team-a", Name: "SparkClean Team A", Rating: 4.9, Price: 1500, DistanceKm: 2.0, Verified: true, ResponseTime: "30 min", JobsDone: 512},
		{ID: "w-team-b", Name: "UrbanShine Crew", Rating: 4.4, Price: 1350, DistanceKm: 5.5, Verified: true, ResponseTime: "45 min", JobsDone: 289},
	},
	"sofa-cleaning": {
		{ID: "w-team-b", Name: "UrbanShine Crew", Rating: 4.4, Price: 750, DistanceKm: 5.5, Verified: true, ResponseTime: "45 min", JobsDone: 289},
	},
	"kitchen-cleaning": {
		{ID: "w-team-a", Name: "SparkClean Team A", Rating: 4.9, Price: 950, DistanceKm: 2.0, Verified: true, ResponseTime: "30 min", JobsDone: 512},
	},
	"furniture-repair": {
		{ID: "w-irfan", Name: "Irfan Ali", Rating: 4.6, Price: 520, DistanceKm: 1.9, Verified: true, ResponseTime: "12 min", JobsDone: 231},
	},
	"door-fitting": {
		{ID: "w-irfan", Name: "Irfan Ali", Rating: 4.6, Price: 680, DistanceKm: 1.9, Verified: true, ResponseTime: "12 min", JobsDone: 231},
	},
}
