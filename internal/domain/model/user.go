package model

import "time"

const (
	MembershipTypePaid = "paid"
	MembershipTypeFree = "free"

	MembershipStatusActive   = "active"
	MembershipStatusInactive = "inactive"
)

// User is the subset of the member profile the payment flows read and write.
type User struct {
	ID               string
	FullName         string
	Email            string
	Phone            string
	Mobile           string
	MembershipType   string
	MembershipStatus string
	MembershipCode   string
	Category         string
	Position         string
	CurrentPlanID    *string
	CurrentPlanName  *string
	MembershipExpiry *time.Time
}

// ContactMobile prefers the mobile number over the landline.
func (u *User) ContactMobile() string {
	if u.Mobile != "" {
		return u.Mobile
	}
	return u.Phone
}

// DisplayName falls back to the email when the profile has no name.
func (u *User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	if u.Email != "" {
		return u.Email
	}
	return "Member"
}

// ActivateMembership mirrors an active subscription onto the profile.
func (u *User) ActivateMembership(plan *SubscriptionPlan, expiresAt *time.Time) {
	id, name := plan.ID, plan.Name
	u.CurrentPlanID = &id
	u.CurrentPlanName = &name
	if mt := plan.MembershipType(); mt != "" {
		u.MembershipType = mt
	}
	u.MembershipExpiry = expiresAt
	u.MembershipStatus = MembershipStatusActive
}
