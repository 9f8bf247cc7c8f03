package lark

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	_ "golang.org/x/image/webp"
)

// UploadImage checks that path decodes as an image, then uploads it for use in messages.
func (c *Client) UploadImage(ctx context.Context, path string) (string, error) {
	if _, err := imaging.Open(path); err != nil {
		return "", fmt.Errorf("decode image %s: %w", path, err)
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	req := larkim.NewCreateImageReqBuilder().
		Body(larkim.NewCreateImageReqBodyBuilder().
			ImageType("message").
			Image(f).
			Build()).
		Build()
	resp, err := c.api.Im.Image.Create(ctx, req)
	if err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}
	if !resp.Success() {
		return "", apiError("upload image", resp.Code, resp.Msg)
	}
	if resp.Data == nil {
		return "", nil
	}
	return deref(resp.Data.ImageKey), nil
}

// UploadFile uploads path as fileType: opus, mp4, pdf, doc, xls, ppt or stream.
func (c *Client) UploadFile(ctx context.Context, path, fileType string) (string, error) {
	if fileType == "" {
		fileType = "stream"
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	req := larkim.NewCreateFileReqBuilder().
		Body(larkim.NewCreateFileReqBodyBuilder().
			FileType(fileType).
			FileName(filepath.Base(path)).
			File(f).
			Build()).
		Build()
	resp, err := c.api.Im.File.Create(ctx, req)
	if err != nil {
		return "", fmt.Errorf("upload file: %w", err)
	}
	if !resp.Success() {
		return "", apiError("upload file", resp.Code, resp.Msg)
	}
	if resp.Data == nil {
		return "", nil
	}
	return deref(resp.Data.FileKey), nil
}

func (c *Client) DownloadImage(ctx context.Context, imageKey, dest string) error {
	resp, err := c.api.Im.Image.Get(ctx, larkim.NewGetImageReqBuilder().ImageKey(imageKey).Build())
	if err != nil {
		return fmt.Errorf("download image: %w", err)
	}
	if !resp.Success() {
		return apiError("download image", resp.Code, resp.Msg)
	}
	return writeFile(dest, resp.File)
}

func (c *Client) DownloadFile(ctx context.Context, fileKey, dest string) error {
	resp, err := c.api.Im.File.Get(ctx, larkim.NewGetFileReqBuilder().FileKey(fileKey).Build())
	if err != nil {
		return fmt.Errorf("download file: %w", err)
	}
	if !resp.Success() {
		return apiError("download file", resp.Code, resp.Msg)
	}
	return writeFile(dest, resp.File)
}

func writeFile(dest string, r io.Reader) error {
	if r == nil {
		return fmt.Errorf("empty download body")
	}
	if dir := filepath.Dir(dest); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", dest, err)
	}
	return f.Close()
}
