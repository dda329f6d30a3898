package cbow

import (
	"os"

	"github.com/FilippoRomeo/wordembed"
	"github.com/FilippoRomeo/wordembed/internal/atomicfile"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

func init() {
	var c Checkpoint
	serializer.RegisterTypedDeserializer(c.SerializerType(), DeserializeCheckpoint)
	var f FinalModel
	serializer.RegisterTypedDeserializer(f.SerializerType(), DeserializeFinalModel)
}

// A Checkpoint is a snapshot of training state taken when
// the epoch loss improves.
type Checkpoint struct {
	Model     *Model
	Optimizer *AdamW
	Loss      float64
	Epoch     int
}

// DeserializeCheckpoint deserializes a Checkpoint.
func DeserializeCheckpoint(d []byte) (*Checkpoint, error) {
	var res Checkpoint
	err := serializer.DeserializeAny(d, &res.Model, &res.Optimizer, &res.Loss, &res.Epoch)
	if err != nil {
		return nil, essentials.AddCtx("deserialize Checkpoint", err)
	}
	return &res, nil
}

// SerializerType returns the unique ID used to serialize
// a Checkpoint with the serializer package.
func (c *Checkpoint) SerializerType() string {
	return "github.com/FilippoRomeo/wordembed/cbow.Checkpoint"
}

// Serialize serializes the Checkpoint.
func (c *Checkpoint) Serialize() ([]byte, error) {
	return serializer.SerializeAny(c.Model, c.Optimizer, c.Loss, c.Epoch)
}

// A FinalModel bundles everything needed to use or resume
// a trained model.
type FinalModel struct {
	Model     *Model
	Optimizer *AdamW
	Vocab     wordembed.Vocab

	// Config is the JSON-encoded training configuration.
	Config []byte
}

// DeserializeFinalModel deserializes a FinalModel.
func DeserializeFinalModel(d []byte) (*FinalModel, error) {
	var res FinalModel
	var config serializer.Bytes
	err := serializer.DeserializeAny(d, &res.Model, &res.Optimizer, &res.Vocab, &config)
	if err != nil {
		return nil, essentials.AddCtx("deserialize FinalModel", err)
	}
	res.Config = config
	return &res, nil
}

// Embed creates an Embed for the trained embeddings.
func (f *FinalModel) Embed() *Embed {
	return NewEmbed(f.Model.Embedding.Vector, f.Vocab)
}

// SerializerType returns the unique ID used to serialize
// a FinalModel with the serializer package.
func (f *FinalModel) SerializerType() string {
	return "github.com/FilippoRomeo/wordembed/cbow.FinalModel"
}

// Serialize serializes the FinalModel.
func (f *FinalModel) Serialize() ([]byte, error) {
	return serializer.SerializeAny(f.Model, f.Optimizer, f.Vocab, serializer.Bytes(f.Config))
}

// Save atomically writes a serializable object to a file.
//
// A failed Save leaves any previous file at path intact.
func Save(path string, obj serializer.Serializer) error {
	data, err := serializer.SerializeAny(obj)
	if err != nil {
		return essentials.AddCtx("save "+path, err)
	}
	return atomicfile.WriteFile(path, data)
}

// LoadCheckpoint reads a Checkpoint written by Save.
func LoadCheckpoint(path string) (ckpt *Checkpoint, err error) {
	defer essentials.AddCtxTo("load checkpoint", &err)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := serializer.DeserializeAny(data, &ckpt); err != nil {
		return nil, err
	}
	return ckpt, nil
}

// LoadFinalModel reads a FinalModel written by Save.
func LoadFinalModel(path string) (model *FinalModel, err error) {
	defer essentials.AddCtxTo("load model", &err)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := serializer.DeserializeAny(data, &model); err != nil {
		return nil, err
	}
	return model, nil
}
