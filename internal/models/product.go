package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Product struct {
	ID            primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	ProductID     string              `bson:"productId" json:"productId"`
	Name          string              `bson:"name" json:"name"`
	Brand         string              `bson:"brand,omitempty" json:"brand,omitempty"`
	CategoryID    *primitive.ObjectID `bson:"categoryId,omitempty" json:"categoryId,omitempty"`
	Compatibility StringList          `bson:"compatibility" json:"compatibility"`
	Description   string              `bson:"description,omitempty" json:"description,omitempty"`
	Price         float64             `bson:"price" json:"price"`
	SaleEnabled   bool                `bson:"saleEnabled" json:"saleEnabled"`
	SalePrice     float64             `bson:"salePrice" json:"salePrice"`
	IsOnSale      bool                `bson:"-" json:"isOnSale"`
	Stock         int                 `bson:"stock" json:"stock"`
	InStock       bool                `bson:"-" json:"inStock"`
	Images        []string            `bson:"images" json:"images"`
	QRCode        string              `bson:"qrCode,omitempty" json:"qrCode,omitempty"`
	RatingAverage float64             `bson:"ratingAverage" json:"ratingAverage"`
	RatingCount   int                 `bson:"ratingCount" json:"ratingCount"`
	IsActive      bool                `bson:"isActive" json:"isActive"`
	IsDeleted     bool                `bson:"isDeleted" json:"isDeleted,omitempty"`
	DeletedAt     *time.Time          `bson:"deletedAt,omitempty" json:"deletedAt,omitempty"`
	CreatedAt     time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time           `bson:"updatedAt" json:"updatedAt"`
}
