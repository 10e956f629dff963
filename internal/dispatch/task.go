package dispatch

import "strings"

// Task is one canonical category of help a requester can ask for, together
// with its volunteer matching rule: a set of capability prefixes (a volunteer
// satisfies the set when any declared capability starts with any prefix) and a
// set of extra predicates over the volunteer record (satisfied when any
// predicate passes).
type Task struct {
	Raw                 string
	supportRequirements []string
	fulfillment         []Predicate
}

// Predicate is an arbitrary fulfillment requirement checked against a
// volunteer record.
type Predicate func(v *Volunteer) bool

// CanBeFulfilledBy reports whether the volunteer can handle this task. An
// empty prefix set passes vacuously: the transportation task relies solely on
// its predicate, and the catch-all "Other" task instead lists many common
// prefixes as soft matches.
func (t *Task) CanBeFulfilledBy(v *Volunteer) bool {
	capabilities := v.Capabilities()

	capable := len(t.supportRequirements) == 0
	for _, requirement := range t.supportRequirements {
		for _, capability := range capabilities {
			// If the beginning of any capability matches the
			// requirement, the volunteer can handle the task.
			if strings.HasPrefix(capability, requirement) {
				capable = true
			}
		}
	}

	fulfills := len(t.fulfillment) == 0
	for _, requirement := range t.fulfillment {
		if requirement(v) {
			fulfills = true
		}
	}

	return capable && fulfills
}

// Equals compares tasks by canonical label.
func (t *Task) Equals(other *Task) bool {
	return other != nil && t.Raw == other.Raw
}

func volunteerHasCar(v *Volunteer) bool {
	for _, mode := range v.TransportationModes() {
		if mode == "Yes, I have a car" {
			return true
		}
	}
	return false
}

// The fixed task catalog. Labels and capability prefixes mirror the intake
// form options exactly; matching is case-sensitive prefix, not substring.
var (
	GroceryShopping = &Task{
		Raw:                 "Grocery shopping",
		supportRequirements: []string{"Picking up groceries/medications"},
	}

	PrescriptionPickup = &Task{
		Raw:                 "Picking up a prescription",
		supportRequirements: []string{"Picking up groceries/medications"},
	}

	MedicalApptTransportation = &Task{
		Raw:         "Transportation to/from a medical appointment",
		fulfillment: []Predicate{volunteerHasCar},
	}

	DogWalking = &Task{
		Raw:                 "Dog walking",
		supportRequirements: []string{"Pet-sitting/walking/feeding"},
	}

	Loneliness = &Task{
		Raw: "Loneliness",
		supportRequirements: []string{
			"Check-in on folks throughout the day (in-person or phone call)",
			"Checking in on people",
		},
	}

	AccessHealthInfo = &Task{
		Raw: "Accessing verified health information",
		supportRequirements: []string{
			"Check-in on folks throughout the day (in-person or phone call)",
			"Checking in on people",
			"Navigating the health care/insurance websites",
		},
	}

	// Match most requirements since we don't know the nature of an "Other".
	// Known soft spot: there is no precise matching signal for it.
	Other = &Task{
		Raw: "Other",
		supportRequirements: []string{
			"Meal delivery",
			"Picking up groceries/medications",
			"Pet-sitting/walking/feeding",
			"Checking in on people",
			"Donations of other kind",
		},
	}
)

// PossibleTasks enumerates the whole taxonomy.
var PossibleTasks = []*Task{
	GroceryShopping,
	PrescriptionPickup,
	MedicalApptTransportation,
	DogWalking,
	Loneliness,
	AccessHealthInfo,
	Other,
}

var tasksByRaw = func() map[string]*Task {
	byRaw := make(map[string]*Task, len(PossibleTasks))
	for _, task := range PossibleTasks {
		byRaw[task.Raw] = task
	}
	return byRaw
}()

// TaskFromRaw maps a raw task label from the store onto the catalog. Unknown
// labels return nil.
func TaskFromRaw(raw string) *Task {
	return tasksByRaw[raw]
}
