package model

import "time"

// 配送先住所 (stored on the user's profile)
type Address struct {
	ID     int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID int64 `gorm:"not null;index" json:"user_id"`

	PostalCode string `gorm:"type:varchar(20);not null" json:"postal_code"`
	State      string `gorm:"type:varchar(100);not null" json:"state"`
	City       string `gorm:"type:varchar(255);not null" json:"city"`
	Line1      string `gorm:"type:varchar(255);not null" json:"line1"`
	Line2      string `gorm:"type:varchar(255)" json:"line2"`
	Country    string `gorm:"type:varchar(2);not null;default:'US'" json:"country"`

	//宛名
	Name  string `gorm:"type:varchar(255);not null" json:"name"`
	Phone string `gorm:"type:varchar(30)" json:"phone"`

	//checkout uses the default address before anything the provider collected
	IsDefault bool `gorm:"not null;default:false" json:"is_default"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

// ShippingAddress is the copy of an address kept on an order.
type ShippingAddress struct {
	Name       string `gorm:"type:varchar(255)" json:"name"`
	Line1      string `gorm:"type:varchar(255)" json:"line1"`
	Line2      string `gorm:"type:varchar(255)" json:"line2"`
	City       string `gorm:"type:varchar(255)" json:"city"`
	State      string `gorm:"type:varchar(100)" json:"state"`
	PostalCode string `gorm:"type:varchar(20)" json:"postal_code"`
	Country    string `gorm:"type:varchar(2)" json:"country"`
	Phone      string `gorm:"type:varchar(30)" json:"phone"`
}

func (s ShippingAddress) IsZero() bool {
	return s.Line1 == "" && s.City == "" && s.PostalCode == ""
}

func (a Address) ToShipping() ShippingAddress {
	return ShippingAddress{
		Name:       a.Name,
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
		Phone:      a.Phone,
	}
}
