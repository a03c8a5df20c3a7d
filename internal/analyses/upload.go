package analyses

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/go-playground/validator/v10"
)

// Object metadata keys attached when the upload URL is issued.
const (
	MetadataUser     = "user"
	MetadataFileName = "file_name"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Location identifies an uploaded object.
type Location struct {
	Bucket string `validate:"required"`
	Key    string `validate:"required"`
}

// LocationFromEvent extracts the bucket and decoded key of one notification record.
func LocationFromEvent(rec events.S3EventRecord) (Location, error) {
	key := rec.S3.Object.URLDecodedKey
	if key == "" {
		key = rec.S3.Object.Key
	}
	loc := Location{Bucket: rec.S3.Bucket.Name, Key: key}
	if err := validate.Struct(loc); err != nil {
		return Location{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	return loc, nil
}

// Upload is a notification that passed validation: the object and who it belongs to.
type Upload struct {
	Location
	UserID   string `validate:"required"`
	FileName string `validate:"required"`
}

// NewUpload validates the object metadata. Absent or blank user / file_name
// yields a *MissingMetadataError.
func NewUpload(loc Location, metadata map[string]string) (Upload, error) {
	u := Upload{
		Location: loc,
		UserID:   strings.TrimSpace(lookupMetadata(metadata, MetadataUser)),
		FileName: strings.TrimSpace(lookupMetadata(metadata, MetadataFileName)),
	}
	if err := validate.Struct(u); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return Upload{}, err
		}
		missing := &MissingMetadataError{Key: loc.Key}
		for _, fe := range verrs {
			switch fe.StructField() {
			case "UserID":
				missing.Fields = append(missing.Fields, MetadataUser)
			case "FileName":
				missing.Fields = append(missing.Fields, MetadataFileName)
			default:
				return Upload{}, fmt.Errorf("%w: %v", ErrInvalidEvent, fe)
			}
		}
		return Upload{}, missing
	}
	return u, nil
}

// Record returns the initial record for this upload.
func (u Upload) Record() Record {
	return Record{
		ID:       u.Key,
		FileName: u.FileName,
		FileURL:  ObjectURL(u.Bucket, u.Key),
		UserID:   u.UserID,
		Status:   StatusTranscribing,
	}
}

// S3 lowercases user metadata keys, but other producers may not.
func lookupMetadata(metadata map[string]string, key string) string {
	if v, ok := metadata[key]; ok {
		return v
	}
	for k, v := range metadata {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}
