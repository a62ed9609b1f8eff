package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ErrNoRemoteCopy — в удалённом хранилище нет копии.
var ErrNoRemoteCopy = errors.New("удалённая копия не найдена")

// Remote — удалённое хранилище копий.
type Remote interface {
	Upload(ctx context.Context, data []byte) error
	Download(ctx context.Context) ([]byte, error)
}

// S3API — методы s3.Client, которыми пользуется S3Remote.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Remote хранит одну копию под фиксированным ключом бакета.
type S3Remote struct {
	client S3API
	bucket string
	key    string
}

// NewS3Remote создаёт клиента S3 из стандартной цепочки настроек AWS
// (переменные окружения, ~/.aws, роль инстанса).
func NewS3Remote(ctx context.Context, bucket, key string) (*S3Remote, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("не удалось загрузить настройки AWS: %w", err)
	}
	return NewS3RemoteWithClient(s3.NewFromConfig(awsCfg), bucket, key), nil
}

func NewS3RemoteWithClient(client S3API, bucket, key string) *S3Remote {
	return &S3Remote{client: client, bucket: bucket, key: key}
}

func (r *S3Remote) Upload(ctx context.Context, data []byte) error {
	_, err := r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(r.bucket),
		Key:         aws.String(r.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return fmt.Errorf("s3 put %s/%s: %w", r.bucket, r.key, err)
	}
	return nil
}

func (r *S3Remote) Download(ctx context.Context) ([]byte, error) {
	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, ErrNoRemoteCopy
		}
		return nil, fmt.Errorf("s3 get %s/%s: %w", r.bucket, r.key, err)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("чтение %s/%s: %w", r.bucket, r.key, err)
	}
	return data, nil
}
