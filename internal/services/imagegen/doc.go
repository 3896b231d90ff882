// Package imagegen is the cover-art provider client.
//
// Two request shapes are supported, selected per provider by its style:
//
//   - "openrouter": chat completions with image output modality; the image
//     comes back as a data URL on the assistant message.
//   - "openai": the images/generations API; the image comes back as base64
//     or as a URL that is downloaded.
//
// All requests share one rate limiter sized by image.requests_per_minute.
package imagegen
