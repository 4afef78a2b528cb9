package halolink

import "context"

const imagesInStudyQuery = `
query studyByPk($pk: Int!) {
  studyByPk(pk: $pk) {
    pk
    id
    name
    studyImages {
      image {
        pk
        id
        location
        tag
        stain
        barcode
        fieldValues {
          value
          systemField {
            name
          }
        }
      }
    }
  }
}`

const imageByPkQuery = `
query imageByPk($pk: Int!) {
  imageByPk(pk: $pk) {
    pk
    id
    location
    tag
    barcode
  }
}`

const updateFieldsMutation = `
mutation updateImageFields($pk: Int!, $fields: [ImageFieldValueInput!]!) {
  updateImageFieldValues(pk: $pk, fieldValues: $fields) {
    pk
  }
}`

const moveImageMutation = `
mutation moveImage($pk: Int!, $fromStudyPk: Int!, $toStudyPk: Int!) {
  moveImage(pk: $pk, fromStudyPk: $fromStudyPk, toStudyPk: $toStudyPk) {
    pk
  }
}`

type listedFieldValue struct {
	Value       string `json:"value"`
	SystemField struct {
		Name string `json:"name"`
	} `json:"systemField"`
}

type listedImage struct {
	PK          int64              `json:"pk"`
	ID          string             `json:"id"`
	Location    string             `json:"location"`
	Tag         string             `json:"tag"`
	Stain       string             `json:"stain"`
	Barcode     string             `json:"barcode"`
	FieldValues []listedFieldValue `json:"fieldValues"`
}

type studyByPkResult struct {
	StudyByPk struct {
		PK          int64  `json:"pk"`
		ID          string `json:"id"`
		Name        string `json:"name"`
		StudyImages []struct {
			Image listedImage `json:"image"`
		} `json:"studyImages"`
	} `json:"studyByPk"`
}

// ImagesInStudy lists every image of the study, in platform order.
func (c *Client) ImagesInStudy(ctx context.Context, studyPK int64) ([]Image, error) {
	var result studyByPkResult
	if err := c.execute(ctx, imagesInStudyQuery, map[string]any{"pk": studyPK}, &result); err != nil {
		return nil, err
	}
	images := make([]Image, 0, len(result.StudyByPk.StudyImages))
	for _, entry := range result.StudyByPk.StudyImages {
		images = append(images, convertListedImage(entry.Image))
	}
	return images, nil
}

func convertListedImage(li listedImage) Image {
	img := Image{
		PK:       li.PK,
		ID:       li.ID,
		Location: li.Location,
		Tag:      li.Tag,
		Stain:    li.Stain,
		Barcode:  li.Barcode,
	}
	for _, fv := range li.FieldValues {
		img.FieldValues = append(img.FieldValues, FieldValue{Name: fv.SystemField.Name, Value: fv.Value})
	}
	return img
}

// ImageByPK fetches a single image by its primary key.
func (c *Client) ImageByPK(ctx context.Context, pk int64) (Image, error) {
	var result struct {
		ImageByPk listedImage `json:"imageByPk"`
	}
	if err := c.execute(ctx, imageByPkQuery, map[string]any{"pk": pk}, &result); err != nil {
		return Image{}, err
	}
	return convertListedImage(result.ImageByPk), nil
}

// UpdateFields writes the field-update payload to the image's structured
// metadata fields.
func (c *Client) UpdateFields(ctx context.Context, imagePK int64, updates []FieldUpdate) error {
	fields := make([]map[string]string, 0, len(updates))
	for _, u := range updates {
		fields = append(fields, map[string]string{
			"field": u.Field.Key(),
			"value": u.Value,
		})
	}
	return c.execute(ctx, updateFieldsMutation, map[string]any{"pk": imagePK, "fields": fields}, nil)
}

// MoveImage relocates an image between two study areas.
func (c *Client) MoveImage(ctx context.Context, imagePK, fromStudyPK, toStudyPK int64) error {
	return c.execute(ctx, moveImageMutation, map[string]any{
		"pk":          imagePK,
		"fromStudyPk": fromStudyPK,
		"toStudyPk":   toStudyPK,
	}, nil)
}
