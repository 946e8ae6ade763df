// Package mongo connects to MongoDB with the v2 driver. The alert service
// keeps templates, recipient profiles and recommendations there.
package mongo
